package main

import (
	"context"
	"log"

	"github.com/viralforge/socmed/services/search-service/internal/app/bootstrap"
)

func main() {
	ctx := context.Background()
	runtime, err := bootstrap.NewRuntime(ctx, "configs/default.yaml")
	if err != nil {
		log.Fatalf("bootstrap search-service: %v", err)
	}
	if err := runtime.Run(ctx); err != nil {
		log.Fatalf("run search-service: %v", err)
	}
}
