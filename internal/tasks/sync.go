package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/ours334/player/internal/repositories"
	"github.com/ours334/player/internal/services"
	"github.com/ours334/player/internal/shared"
)

// Verify statuses.
const (
	StatusOK       = "OK"
	StatusMismatch = "MISMATCH"
	StatusMissing  = "MISSING"
)

// TableSpec names a sync table and the conflict key its upserts merge on.
type TableSpec struct {
	Name     string
	Conflict string
}

// tableSpecs lists the synced tables in dependency order. Membership tables
// merge on their natural keys so reruns and mirrored writes converge; the
// append-only tables merge on id.
var tableSpecs = []TableSpec{
	{Name: "users", Conflict: "id"},
	{Name: "auth_sessions", Conflict: "token_hash"},
	{Name: "favorite_songs", Conflict: "user_id,song_id"},
	{Name: "playlist_items", Conflict: "user_id,playlist_id,song_id"},
	{Name: "playback_logs", Conflict: "id"},
}

// SyncOptions shapes a migration run.
type SyncOptions struct {
	BatchSize     int
	DryRun        bool
	FromCreatedAt string
	Tables        []string
}

// TableResult reports one table's migration outcome.
type TableResult struct {
	Table   string
	Rows    int64
	Batches int
	Skipped bool
	Reason  string
}

// VerifyResult compares one table's row counts across the two stores.
type VerifyResult struct {
	Table  string
	Local  int64
	Remote int64
	Status string
}

// ClaimResult reports how many anonymous playback rows were assigned.
type ClaimResult struct {
	UserID          int64
	Account         string
	LocalMigrated   int64
	LocalRemaining  int64
	RemoteMigrated  int64
	RemoteAttempted bool
}

// SyncEngine copies library rows from the local store to the remote one.
type SyncEngine struct {
	store  *repositories.Store
	client *services.Client
	logger *log.Logger
}

// NewSyncEngine wires the engine. Both stores are required.
func NewSyncEngine(store *repositories.Store, client *services.Client, logger *log.Logger) (*SyncEngine, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: local store is required", shared.ErrStoreUnavailable)
	}
	if client == nil {
		return nil, fmt.Errorf("%w: migration needs remote credentials", shared.ErrRemoteDisabled)
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &SyncEngine{store: store, client: client, logger: logger}, nil
}

func selectedSpecs(tables []string) ([]TableSpec, error) {
	if len(tables) == 0 {
		return tableSpecs, nil
	}

	known := make(map[string]TableSpec, len(tableSpecs))
	for _, spec := range tableSpecs {
		known[spec.Name] = spec
	}

	var specs []TableSpec
	for _, spec := range tableSpecs {
		for _, name := range tables {
			if name == spec.Name {
				specs = append(specs, spec)
			}
		}
	}
	for _, name := range tables {
		if _, ok := known[name]; !ok {
			return nil, fmt.Errorf("%w: unknown sync table %q", shared.ErrInvalidArgument, name)
		}
	}
	return specs, nil
}

// Run pushes local rows to the remote store table by table. Tables missing on
// the remote side are skipped, not failed, so a partial remote schema still
// syncs what it can.
func (e *SyncEngine) Run(ctx context.Context, opts SyncOptions) ([]TableResult, error) {
	specs, err := selectedSpecs(opts.Tables)
	if err != nil {
		return nil, err
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}

	var results []TableResult
	for _, spec := range specs {
		result, err := e.runTable(ctx, spec, opts)
		if err != nil {
			return results, fmt.Errorf("sync of %s failed: %w", spec.Name, err)
		}
		results = append(results, result)
	}
	return results, nil
}

func (e *SyncEngine) runTable(ctx context.Context, spec TableSpec, opts SyncOptions) (TableResult, error) {
	result := TableResult{Table: spec.Name}

	exists, err := e.client.TableExists(ctx, spec.Name)
	if err != nil {
		return result, err
	}
	if !exists {
		e.logger.Warn("table missing on remote, skipping", "table", spec.Name)
		result.Skipped = true
		result.Reason = "table missing on remote"
		return result, nil
	}

	var afterID int64
	for {
		batch, lastID, err := e.store.RowsBatch(spec.Name, afterID, opts.BatchSize, opts.FromCreatedAt)
		if err != nil {
			return result, err
		}
		if len(batch) > 0 {
			result.Batches++
			result.Rows += int64(len(batch))
			if !opts.DryRun {
				if err := e.client.Upsert(ctx, spec.Name, batch, spec.Conflict); err != nil {
					return result, err
				}
			}
			e.logger.Debug("pushed batch", "table", spec.Name, "rows", len(batch), "after_id", afterID, "dry_run", opts.DryRun)
		}
		if len(batch) < opts.BatchSize {
			return result, nil
		}
		afterID = lastID
	}
}

// Verify compares per-table row counts. The remote may legitimately hold more
// rows than the local file (other devices push there too), so remote >= local
// verifies clean.
func (e *SyncEngine) Verify(ctx context.Context, fromCreatedAt string) ([]VerifyResult, error) {
	var results []VerifyResult
	for _, spec := range tableSpecs {
		local, err := e.store.CountRows(spec.Name, fromCreatedAt)
		if err != nil {
			return results, err
		}

		exists, err := e.client.TableExists(ctx, spec.Name)
		if err != nil {
			return results, err
		}
		if !exists {
			e.logger.Warn("table missing on remote", "table", spec.Name)
			results = append(results, VerifyResult{Table: spec.Name, Local: local, Status: StatusMissing})
			continue
		}

		var filters []services.Filter
		if fromCreatedAt != "" {
			filters = append(filters, services.Filter{Column: "created_at", Operator: "gte", Value: fromCreatedAt})
		}
		remote, err := e.client.Count(ctx, spec.Name, filters)
		if err != nil {
			return results, err
		}

		status := StatusOK
		if remote < local {
			status = StatusMismatch
		}
		results = append(results, VerifyResult{Table: spec.Name, Local: local, Remote: remote, Status: status})
	}
	return results, nil
}

// Claim assigns every anonymous playback row to the given account, on both
// stores. The account must already exist locally.
func (e *SyncEngine) Claim(ctx context.Context, account string) (*ClaimResult, error) {
	user, err := e.store.UserByAccount(account)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: no such account %q", shared.ErrNotFound, account)
	}

	migrated, remaining, err := e.store.AssignAnonymousLogs(user.ID)
	if err != nil {
		return nil, err
	}
	result := &ClaimResult{
		UserID:         user.ID,
		Account:        user.Account,
		LocalMigrated:  migrated,
		LocalRemaining: remaining,
	}

	anonymous := []services.Filter{{Column: "user_id"}}
	before, err := e.client.Count(ctx, "playback_logs", anonymous)
	if err != nil {
		return result, err
	}
	if before > 0 {
		if err := e.client.Patch(ctx, "playback_logs", anonymous, map[string]any{"user_id": user.ID}); err != nil {
			return result, err
		}
	}
	result.RemoteMigrated = before
	result.RemoteAttempted = true
	return result, nil
}
