package impulse

import "sync"

// StepWorlds steps independent worlds in parallel. A world is always stepped by a single
// goroutine, worlds must not share bodies or listeners that are not safe for concurrent use.
func StepWorlds(worlds []*World, dt float64, workers int) {
	task(max(DEFAULT_WORKERS, workers), worlds, func(w *World) {
		w.Step(dt)
	})
}

func task[T any](workersCount int, data []T, fn func(data T)) {
	var wg sync.WaitGroup
	dataSize := len(data)
	chunkSize := (dataSize + workersCount - 1) / workersCount

	for workerID := 0; workerID < workersCount; workerID++ {
		start, end := workerID*chunkSize, min((workerID+1)*chunkSize, dataSize)
		if start >= end {
			break
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := start; i < end; i++ {
				fn(data[i])
			}
		}()
	}
	wg.Wait()
}
