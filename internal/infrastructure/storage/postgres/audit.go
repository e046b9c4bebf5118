package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	appctx "albaran/internal/core/context"
	"albaran/internal/core/id"
	"albaran/internal/domain/deliverynote"
	"albaran/pkg/logger"
)

// Payloads above this size are stored zstd-compressed.
const auditCompressThreshold = 10 * 1024

// AuditEntry is a single lifecycle audit record.
type AuditEntry struct {
	ID              id.ID           `db:"id"`
	NoteID          id.ID           `db:"note_id"`
	Action          string          `db:"action"`
	UserID          string          `db:"user_id"`
	Snapshot        json.RawMessage `db:"snapshot"`
	SnapshotZstd    []byte          `db:"snapshot_zstd"`
	CompressionAlgo string          `db:"compression_algo"`
	CreatedAt       time.Time       `db:"created_at"`
}

// AuditLog persists lifecycle transitions (create, update, sign, delete)
// with a JSON snapshot of the note. It implements deliverynote.AuditLog:
// failures are logged and swallowed, never surfaced to the caller — the
// trail is an observability aid, not part of the business contract.
type AuditLog struct {
	txm     *TxManager
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

var (
	_ deliverynote.AuditLog    = (*AuditLog)(nil)
	_ deliverynote.AuditReader = (*AuditLog)(nil)
)

// NewAuditLog creates the audit sink.
func NewAuditLog(txm *TxManager) (*AuditLog, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &AuditLog{txm: txm, encoder: encoder, decoder: decoder}, nil
}

// Record writes one audit entry inside the caller's transaction, so the
// entry commits or rolls back together with the operation it describes.
func (a *AuditLog) Record(ctx context.Context, action string, noteID id.ID, changes any) {
	snapshot, err := json.Marshal(changes)
	if err != nil {
		logger.Warn(ctx, "audit snapshot marshal failed", "action", action, "note_id", noteID, "error", err)
		return
	}

	entry := AuditEntry{
		ID:              id.New(),
		NoteID:          noteID,
		Action:          action,
		UserID:          appctx.GetUserID(ctx),
		Snapshot:        snapshot,
		CompressionAlgo: "none",
		CreatedAt:       time.Now().UTC(),
	}

	if len(snapshot) > auditCompressThreshold {
		entry.SnapshotZstd = a.encoder.EncodeAll(snapshot, nil)
		entry.Snapshot = nil
		entry.CompressionAlgo = "zstd"
	}

	const sql = `
		INSERT INTO audit_log (
			id, note_id, action, user_id,
			snapshot, snapshot_zstd, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = a.txm.GetQuerier(ctx).Exec(ctx, sql,
		entry.ID, entry.NoteID, entry.Action, entry.UserID,
		entry.Snapshot, entry.SnapshotZstd, entry.CompressionAlgo, entry.CreatedAt,
	)
	if err != nil {
		logger.Warn(ctx, "audit write failed", "action", action, "note_id", noteID, "error", err)
	}
}

// History returns the most recent audit entries for a note, newest first,
// with compressed snapshots inflated. Runs in a read-only transaction.
func (a *AuditLog) History(ctx context.Context, noteID id.ID, limit int) ([]deliverynote.AuditEntry, error) {
	var entries []deliverynote.AuditEntry
	err := a.txm.ReadOnly(ctx, func(ctx context.Context) error {
		const sql = `
			SELECT id, note_id, action, user_id,
			       snapshot, snapshot_zstd, compression_algo, created_at
			FROM audit_log
			WHERE note_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		`
		rows, err := a.txm.GetQuerier(ctx).Query(ctx, sql, noteID, limit)
		if err != nil {
			return fmt.Errorf("query audit history: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var e AuditEntry
			err := rows.Scan(
				&e.ID, &e.NoteID, &e.Action, &e.UserID,
				&e.Snapshot, &e.SnapshotZstd, &e.CompressionAlgo, &e.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("scan audit entry: %w", err)
			}

			if e.CompressionAlgo == "zstd" && len(e.SnapshotZstd) > 0 {
				inflated, err := a.decoder.DecodeAll(e.SnapshotZstd, nil)
				if err != nil {
					return fmt.Errorf("decompress audit snapshot: %w", err)
				}
				e.Snapshot = inflated
			}
			entries = append(entries, deliverynote.AuditEntry{
				Action:    e.Action,
				UserID:    e.UserID,
				Snapshot:  e.Snapshot,
				CreatedAt: e.CreatedAt,
			})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
