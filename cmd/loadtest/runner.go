package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
)

const (
	endpointScenario = "scenario"
	endpointCreate   = "create_order"
	endpointProcess  = "process_next"
)

type orderBody struct {
	Description string `json:"description"`
	Time        int    `json:"time"`
}

// run гоняет сценарии пулом воркеров и собирает отчёт.
func run(cfg config) report {
	ctx := context.Background()
	if cfg.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.duration)
		defer cancel()
	}

	started := time.Now()
	runID := fmt.Sprintf("%d-%d", started.UnixNano(), os.Getpid())
	rec := newRecorder()

	jobs := make(chan int)
	var wg sync.WaitGroup
	wg.Add(cfg.concurrency)
	for w := 0; w < cfg.concurrency; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				runScenario(cfg, rec, runID, i)
			}
		}()
	}

	limit := cfg.total
	if cfg.duration > 0 && !cfg.totalSet {
		limit = -1
	}
feed:
	for i := 0; limit < 0 || i < limit; i++ {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	return rec.report(started, time.Since(started))
}

func runScenario(cfg config, rec *recorder, runID string, index int) {
	started := time.Now()
	err := createAndMaybeProcess(cfg, rec, runID, index)
	code := fiber.StatusOK
	if err != nil {
		code = fiber.StatusInternalServerError
	}
	rec.observe(endpointScenario, code, err == nil, time.Since(started))
}

func createAndMaybeProcess(cfg config, rec *recorder, runID string, index int) error {
	body, err := sonic.Marshal(orderBody{
		Description: fmt.Sprintf("%s-%s-%d", cfg.tag, runID, index),
		Time:        cfg.orderTime,
	})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/orders/%d", cfg.baseURL, index%cfg.clients+1)
	if err := call(cfg, rec, endpointCreate, url, body, fiber.StatusCreated); err != nil {
		return err
	}
	if cfg.mode == modeCreate {
		return nil
	}
	return call(cfg, rec, endpointProcess, cfg.baseURL+"/orders/process", nil, fiber.StatusOK)
}

// call отправляет POST и считает успехом только ответ с кодом want.
func call(cfg config, rec *recorder, endpoint, url string, body []byte, want int) error {
	agent := fiber.Post(url).Timeout(cfg.timeout)
	if body != nil {
		agent.Body(body).ContentType(fiber.MIMEApplicationJSON)
	}

	started := time.Now()
	code, resp, errs := agent.Bytes()
	latency := time.Since(started)
	if len(errs) > 0 {
		rec.observe(endpoint, codeTransport, false, latency)
		return errors.Join(errs...)
	}
	rec.observe(endpoint, code, code == want, latency)
	if code != want {
		return fmt.Errorf("%s: status %d: %s", endpoint, code, resp)
	}
	return nil
}
