package bot

import (
	"context"
	"fmt"
	"log/slog"
)

// Start spawns the event worker pool. It returns immediately; workers run
// until Stop or context cancellation.
func (b *Bot) Start(ctx context.Context) {
	b.logger.Info("Spawning bot worker pool",
		slog.Int("concurrency", b.concurrency),
		slog.String("bot_id", b.botID),
	)

	for i := 0; i < b.concurrency; i++ {
		b.wg.Add(1)
		go b.workerLoop(ctx, i)
	}
}

// Stop closes the event queue and waits for in-flight events to finish.
func (b *Bot) Stop() {
	b.stopOnce.Do(func() {
		close(b.eventsChan)
	})
	b.wg.Wait()
	b.logger.Info("Bot worker pool stopped")
}

// workerLoop is the main processing loop for each worker goroutine
func (b *Bot) workerLoop(ctx context.Context, workerNum int) {
	defer b.wg.Done()

	workerName := fmt.Sprintf("%s-%d", b.botID, workerNum)
	b.logger.Debug("Bot worker started",
		slog.String("worker_name", workerName),
	)

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Bot worker stopping - context canceled",
				slog.String("worker_name", workerName),
			)
			return

		case event, ok := <-b.eventsChan:
			if !ok {
				b.logger.Debug("Bot worker stopping - event queue closed",
					slog.String("worker_name", workerName),
				)
				return
			}

			b.handleEvent(ctx, event)
		}
	}
}
