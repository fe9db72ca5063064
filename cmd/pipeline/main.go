package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"go-medimage-pipeline/internal/config"
	"go-medimage-pipeline/internal/model"
	"go-medimage-pipeline/internal/pipeline"
	"go-medimage-pipeline/internal/storage"
	"go-medimage-pipeline/internal/store"
	"go-medimage-pipeline/pkg/utils"
)

func main() {
	op := flag.String("op", "preprocess", "operation to run: preprocess or synthesis")
	reqPath := flag.String("request", "", "path to a JSON request body")
	localRoot := flag.String("local", "", "use a local directory as the object store instead of S3")
	download := flag.String("download", "", "stage run outputs into this directory after the operation")
	flag.Parse()

	cfg := config.Load()
	ctx := context.Background()

	var gateway storage.Gateway
	if *localRoot != "" {
		fs, err := storage.NewFSGateway(*localRoot)
		if err != nil {
			log.Fatal(err)
		}
		gateway = fs
	} else {
		s3gw, err := storage.NewS3Gateway(ctx, cfg.Bucket, cfg.Region)
		if err != nil {
			log.Fatal(err)
		}
		gateway = s3gw
	}
	// Both backends honor the configured per-call deadline; the
	// timeout sits inside the retry so each attempt gets a fresh one.
	gateway = storage.WithRetry(storage.WithTimeout(gateway, cfg.StorageTimeout), storage.DefaultRetryConfig)

	if cfg.DBPath != "" {
		if err := store.InitDB(cfg.DBPath); err != nil {
			log.Fatal(err)
		}
	}

	var body []byte
	if *reqPath != "" {
		var err error
		body, err = os.ReadFile(*reqPath)
		if err != nil {
			log.Fatal(err)
		}
	} else {
		body = []byte("{}")
	}

	p := pipeline.New(cfg, gateway)

	var runID string
	var outputs []string
	switch *op {
	case "synthesis":
		var req model.SynthesisRequest
		if err := json.Unmarshal(body, &req); err != nil {
			log.Fatal(err)
		}
		result, err := p.Synthesis(ctx, req)
		if err != nil {
			log.Fatal(err)
		}
		printJSON(result)
		runID = result.RunID
		outputs = append([]string{result.DigitalTwinKey}, result.PreviewKeys...)
	case "preprocess":
		var req model.PreprocessRequest
		if err := json.Unmarshal(body, &req); err != nil {
			log.Fatal(err)
		}
		result, err := p.Preprocess(ctx, req)
		if err != nil {
			log.Fatal(err)
		}
		printJSON(result)
		runID = result.RunID
		outputs = append([]string{result.ProcessedKey}, result.PreviewKeys...)
	default:
		log.Fatalf("unknown operation: %s", *op)
	}

	if *download != "" {
		om := utils.NewOutputManager(*download)
		for _, key := range outputs {
			data, err := gateway.Get(ctx, key)
			if err != nil {
				log.Fatal(err)
			}
			path, err := om.WriteArtifact(runID, key, data)
			if err != nil {
				log.Fatal(err)
			}
			fmt.Printf("💾 Staged %s (%s)\n", path, om.GetFileType(path))
		}
	}
}

func printJSON(v interface{}) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}
