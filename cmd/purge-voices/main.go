// Command purge-voices bulk-deletes cloned voices from the ElevenLabs
// account. Every counseling session leaves a cloned voice behind, and the
// account has a hard cap on how many can exist, so this needs to run
// periodically in any real deployment.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/mirrorline/futureself/pkg/elevenlabs"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "list cloned voices without deleting them")
	keep := flag.String("keep", "", "voice id to preserve")
	flag.Parse()

	// Missing .env is fine: CI and cron run on real environment variables.
	_ = godotenv.Load(".env")

	apiKey := os.Getenv("ELEVENLABS_API_KEY")
	if apiKey == "" {
		log.Fatal("ELEVENLABS_API_KEY is not set")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	client := elevenlabs.NewClient(apiKey, "", 30*time.Second, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	voices, err := client.ListClonedVoices(ctx)
	if err != nil {
		log.Fatalf("Failed to list cloned voices: %v", err)
	}

	fmt.Printf("Found %d cloned voice(s)\n", len(voices))
	if len(voices) == 0 {
		return
	}

	deleted, failed := 0, 0
	for _, v := range voices {
		if v.VoiceID == *keep {
			fmt.Printf("  KEEP   %s  %q\n", v.VoiceID, v.Name)
			continue
		}
		if *dryRun {
			fmt.Printf("  WOULD DELETE  %s  %q\n", v.VoiceID, v.Name)
			continue
		}
		if err := client.DeleteVoice(ctx, v.VoiceID); err != nil {
			fmt.Printf("  FAILED %s  %q: %v\n", v.VoiceID, v.Name, err)
			failed++
			continue
		}
		fmt.Printf("  DELETED %s  %q\n", v.VoiceID, v.Name)
		deleted++
	}

	fmt.Printf("\nDone: %d deleted, %d failed\n", deleted, failed)
	if failed > 0 {
		os.Exit(1)
	}
}
