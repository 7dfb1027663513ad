/*
Package storage provides BoltDB-backed history for recorded plans.

Every "stagehand plan --record" run saves a PlanRecord: the plan's ID,
when it ran, which configuration it read, the stages and pipeline order
it produced, and the full rendered resource document. The history lets an
operator compare what a configuration change did to the topology without
synthesizing twice.

# Architecture

	┌──────────────────── BOLTDB STORAGE ──────────────────────┐
	│                                                            │
	│  BoltStore                                                 │
	│    file:   <dataDir>/stagehand.db                          │
	│    bucket: plans   (key: plan ID, value: JSON PlanRecord)  │
	│                                                            │
	│  Read:  db.View()   concurrent readers                     │
	│  Write: db.Update() serialized, fsync on commit            │
	└────────────────────────────────────────────────────────────┘

Plan IDs are random UUIDs, so the bucket's key order carries no meaning.
ListPlans sorts by CreatedAt, newest first.

Only one process may hold the database at a time. NewBoltStore waits one
second for the file lock before giving up, which turns a second concurrent
CLI invocation into an error instead of a hang.

# Usage

	store, err := storage.NewBoltStore(dataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.SavePlan(record); err != nil {
		return err
	}

	plans, err := store.ListPlans()

GetPlan and DeletePlan wrap ErrNotFound for unknown IDs:

	if errors.Is(err, storage.ErrNotFound) {
		...
	}
*/
package storage
