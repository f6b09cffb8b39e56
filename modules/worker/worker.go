package worker

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"storyreel-server/modules/common/config"
	"storyreel-server/modules/common/model"
	redisClient "storyreel-server/modules/common/redis"
	"storyreel-server/modules/scheduler"
)

const queueKey = "jobs:queue"

// StartBridge watches the Redis submission queue and feeds requests into
// the scheduler. External producers LPUSH JSON-encoded generation
// requests; the bridge BRPOPs them so multiple producers share one
// server's job table.
func StartBridge(sched *scheduler.Scheduler) {
	log.Println("🔄 Redis submission bridge starting...")

	cfg := config.GetConfig()

	rdb := redisClient.Connect(cfg)
	if rdb == nil {
		log.Println("❌ Submission bridge disabled: Redis connection failed")
		return
	}
	log.Println("✅ Redis connected successfully")
	log.Printf("👀 Watching queue: %s", queueKey)

	ctx := context.Background()

	for {
		result, err := rdb.BRPop(ctx, 0, queueKey).Result()
		if err != nil {
			log.Printf("❌ Redis BRPOP error: %v", err)
			time.Sleep(5 * time.Second)
			continue
		}

		// result[0] is the queue name, result[1] the payload.
		payload := result[1]

		var req model.GenerationRequest
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			log.Printf("❌ Discarding malformed queue payload: %v", err)
			continue
		}

		jobID, err := sched.Submit(req)
		if err != nil {
			log.Printf("❌ Rejected queued request: %v", err)
			continue
		}
		log.Printf("🎯 Queued request accepted as job %s", jobID)
	}
}
