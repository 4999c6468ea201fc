// Command geminicli is a thin demo binary over the genai client: it loads
// configuration the same way the library does, issues one GenerateContent
// or StreamGenerateContent call, and prints the result. It exists to
// exercise the client end-to-end, not to be a production gateway — this
// package is not a proxy of model traffic, only a CLI calling into the
// library directly.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/howard-nolan/gemini-client/genai"
	"github.com/howard-nolan/gemini-client/internal/config"
	"github.com/howard-nolan/gemini-client/internal/statusserver"
)

func main() {
	log := logrus.StandardLogger()

	configPath := flag.String("config", "gemini.yaml", "path to an optional YAML config file")
	model := flag.String("model", "gemini-2.0-flash", "model to call")
	prompt := flag.String("prompt", "Say hello in one sentence.", "prompt text")
	stream := flag.Bool("stream", false, "use StreamGenerateContent instead of GenerateContent")
	statusAddr := flag.String("status-addr", "", "if set, serve read-only stream status on this address (e.g. :8090)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("loading config")
	}

	client, err := genai.NewClient(cfg)
	if err != nil {
		log.WithError(err).Fatal("building client")
	}

	if *statusAddr != "" {
		go serveStatus(log, client, *statusAddr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	req := genai.GenerateContentRequest{
		Contents: []genai.Content{{Role: "user", Parts: []genai.Part{{Text: *prompt}}}},
	}

	if *stream {
		runStreaming(ctx, log, client, *model, req)
		return
	}
	runUnary(ctx, log, client, *model, req)
}

func runUnary(ctx context.Context, log *logrus.Logger, client *genai.Client, model string, req genai.GenerateContentRequest) {
	resp, err := client.GenerateContent(ctx, model, req)
	if err != nil {
		log.WithError(err).Fatal("generate content")
	}
	for _, c := range resp.Candidates {
		for _, p := range c.Content.Parts {
			fmt.Println(p.Text)
		}
	}
}

func runStreaming(ctx context.Context, log *logrus.Logger, client *genai.Client, model string, req genai.GenerateContentRequest) {
	id, events, err := client.StreamGenerateContent(ctx, model, req)
	if err != nil {
		log.WithError(err).Fatal("stream generate content")
	}
	log.WithField("stream_id", id).Info("stream started")

	for ev := range events {
		if ev.Err != nil {
			log.WithError(ev.Err).Warn("stream event error")
			continue
		}
		if ev.Done {
			break
		}
		for _, c := range ev.Response.Candidates {
			for _, p := range c.Content.Parts {
				fmt.Print(p.Text)
			}
		}
	}
	fmt.Println()
}

func serveStatus(log *logrus.Logger, client *genai.Client, addr string) {
	srv := &http.Server{Addr: addr, Handler: statusserver.New(client)}
	log.WithField("addr", addr).Info("status server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Error("status server stopped")
	}
}
