package main

import (
	"context"

	"github.com/rs/zerolog/log"
)

// broadcastWorker receives snapshots and fans them out to every renderer
func broadcastWorker(ctx context.Context, inputChan <-chan Snapshot, outputChans []chan<- Snapshot) {
	for {
		select {
		case snap := <-inputChan:
			// Fan out to all downstream workers using non-blocking sends
			for i, ch := range outputChans {
				select {
				case ch <- snap:
				case <-ctx.Done():
					return
				default:
					log.Warn().Int("worker", i).Msg("Downstream channel full, dropping snapshot")
				}
			}

		case <-ctx.Done():
			return
		}
	}
}
