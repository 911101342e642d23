// Command feed-probe attaches to a call's monitor feed and reports what the
// capture pipeline would do with it: chunk counts, inferred sample rate, and
// the extracted mono sample. Useful when a platform changes its stream
// framing and clone samples start coming out wrong.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/mirrorline/futureself/internal/capture"
	"github.com/mirrorline/futureself/pkg/audio"
)

func main() {
	trigger := flag.Duration("trigger", 10*time.Second, "how long to buffer before extracting the sample")
	out := flag.String("out", "", "write the extracted sample as WAV to this path")
	forcedRate := flag.Int("rate", 0, "force a sample rate instead of inferring")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] wss://.../listen\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}
	feedURL := flag.Arg(0)

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	done := make(chan capture.Sample, 1)

	consumer := capture.NewConsumer("probe", capture.Config{
		TriggerAfter:     *trigger,
		RingCapacity:     1000,
		ForcedSampleRate: *forcedRate,
	}, func(s capture.Sample) {
		done <- s
	}, logger)

	fmt.Printf("Connecting to %s\n", feedURL)
	if err := consumer.Connect(feedURL); err != nil {
		log.Fatalf("Connect failed: %v", err)
	}
	defer consumer.Disconnect()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	timeout := time.After(*trigger + 30*time.Second)

	for {
		select {
		case <-ticker.C:
			chunks, bytes := consumer.Stats()
			fmt.Printf("  %d chunks, %d bytes buffered\n", chunks, bytes)

		case sample := <-done:
			fmt.Printf("\nSample extracted:\n")
			fmt.Printf("  sample rate: %d Hz\n", sample.SampleRate)
			fmt.Printf("  mono bytes:  %d (%.1fs)\n", len(sample.PCM),
				float64(len(sample.PCM))/float64(sample.SampleRate*2))

			if *out != "" {
				wav := audio.EncodeWAV(sample.PCM, sample.SampleRate)
				if err := os.WriteFile(*out, wav, 0644); err != nil {
					log.Fatalf("Failed to write WAV: %v", err)
				}
				fmt.Printf("  wrote %s (%d bytes)\n", *out, len(wav))
			}
			return

		case <-timeout:
			log.Fatal("Timed out waiting for the trigger; feed may be silent")
		}
	}
}
