// Package arrhenius coordinates the cache of artifacts derived from
// Arrhenius climate-model runs: simulation datasets, rendered images,
// and per-variable image archives.
//
// Every artifact is keyed by a run id derived from the simulation
// configuration (see the config subpackage) and lives at a canonical
// location under a durable store (the store subpackage). Presence on
// disk is the sole source of truth for "already computed": the
// [Coordinator] exposes idempotent ensure operations that check the
// store first and invoke the expensive producer only on a miss.
//
//	coord, err := arrhenius.New(layout, runner, renderer, archiver)
//	if err != nil {
//	    return err
//	}
//	dir, created, err := coord.EnsureDataset(ctx, cfg)
//
// Concurrent requests are safe: dataset computation is deduplicated
// per run id, so identical configurations arriving together trigger a
// single simulation run, and the image tree of each run id is guarded
// against overlapping writers.
package arrhenius
