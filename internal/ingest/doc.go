// Package ingest turns raw file-change notifications into cached,
// generation-checked extraction results.
//
// Save files are large and arrive mid-write: the game may spend seconds
// streaming a document to disk, and a burst of autosaves can land faster
// than the expensive tiers can run. This package absorbs that by tracking
// exactly one pending candidate, debouncing it until its size and mtime
// hold still, and running extraction out-of-process so a superseded job can
// be stopped by signal instead of by asking nicely.
//
// # Architecture
//
//   - Coordinator: owns the candidate state machine, dispatches
//     generation-tagged tier jobs, commits results
//   - Cache: latest committed result per tier behind an atomic pointer;
//     readers never block
//   - Runner / SubprocessRunner: launches one tier job, by default as a
//     child process of the host binary
//   - Watcher: fsnotify bridge from a saves directory to the coordinator
//
// # Candidate lifecycle
//
// A notification overwrites the single tracked candidate; nothing is ever
// queued behind it. Once the candidate has held still for the debounce
// window, the coordinator assigns each tier the next generation number and
// dispatches the cheap tiers immediately. The full tier runs only after an
// idle delay with no new candidates, or on an explicit RequestTierNow.
//
// If a new notification arrives while jobs are in flight, the in-flight
// workers are signalled to stop and the new candidate starts debouncing
// right away; the coordinator never waits for a cancelled worker to exit.
//
// # Generations
//
// A result commits only if its generation is still the latest dispatched
// for its tier. A superseded job that finishes late, however the process
// exits interleave, is discarded and the tier keeps serving its previous
// good result:
//
//	cache := ingest.NewCache()
//	co, err := ingest.New(cache, runner, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := co.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer co.Stop()
//
//	co.NotifyFileChanged("/saves/campaign.sav")
//	for ev := range co.Events() {
//	    if ev.Kind == ingest.EventCommitted {
//	        res, _ := cache.Result(ev.Tier)
//	        fmt.Println(res.Payload.Tier, res.Generation)
//	    }
//	}
//
// # Failure semantics
//
// Worker failures are operational events, not crashes: a failed or killed
// worker is logged and emitted on Events, the tier's cached result stays
// as it was, and the coordinator keeps running. IsOperational classifies
// the error values involved.
package ingest
