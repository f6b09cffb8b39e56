package main

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"storyreel-server/modules/api"
	"storyreel-server/modules/archive"
	"storyreel-server/modules/backend/geminiimage"
	"storyreel-server/modules/backend/httptts"
	"storyreel-server/modules/common/config"
	"storyreel-server/modules/compose"
	"storyreel-server/modules/narration"
	"storyreel-server/modules/pipeline"
	"storyreel-server/modules/progress"
	"storyreel-server/modules/scene"
	"storyreel-server/modules/scheduler"
	"storyreel-server/modules/segmenter"
	"storyreel-server/modules/worker"
)

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	// Stage backends; each is optional and nil means degraded output.
	var speechBackend narration.SpeechBackend
	if tts := httptts.New(); tts != nil {
		speechBackend = tts
	}
	var imageBackend scene.ImageBackend
	if gemini := geminiimage.New(); gemini != nil {
		imageBackend = gemini
	}

	// Pipeline stages.
	seg := segmenter.New(cfg.MaxSegments)
	narrator := narration.New(speechBackend, cfg.NarrationTimeout)
	scenes := scene.New(imageBackend, cfg.SceneTimeout, cfg.SceneConcurrency)
	composer := compose.NewFFmpegComposer(cfg.FFmpegPath)

	pipe := pipeline.New(seg, narrator, scenes, composer, cfg.ComposeTimeout)
	sched := scheduler.New(pipe, cfg.MaxRunningJobs)

	hub := progress.NewHub()
	sched.SetNotifier(hub.Publish)

	if archiver := archive.NewArchiver(); archiver != nil {
		sched.SetArchiver(archiver.Store)
	}

	// Redis submission bridge (background).
	if cfg.RedisEnabled {
		go worker.StartBridge(sched)
	}

	// Router setup.
	r := mux.NewRouter()
	r.Use(enableCORS)

	handler := api.NewHandler(sched)
	handler.Register(r)
	r.HandleFunc("/ws/progress/{id}", hub.HandleWebSocket)

	if cfg.RedisEnabled {
		if enqueue := worker.NewEnqueueHandler(); enqueue != nil {
			enqueue.RegisterRoutes(r)
		}
	}

	log.Printf("🚀 StoryReel generation server starting on port %s", cfg.Port)
	log.Printf("🎬 Generate: http://localhost:%s/api/generate-video", cfg.Port)
	log.Printf("📡 Progress: ws://localhost:%s/ws/progress/{id}", cfg.Port)
	log.Printf("❤️  Health check: http://localhost:%s/health", cfg.Port)
	log.Printf("📊 Metrics: http://localhost:%s/api/metrics", cfg.Port)

	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
