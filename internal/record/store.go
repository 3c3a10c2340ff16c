package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"nvme-wipe-engine/internal/execute"
	"nvme-wipe-engine/internal/verify"
)

// Sentinel errors for typed error checking.
var (
	// ErrRecordCollision indicates a record with the same id already
	// exists. Ids are second-resolution timestamps; the store is
	// single-writer by contract, so a collision means a reused id.
	ErrRecordCollision = errors.New("record id already exists")
	ErrRecordNotFound  = errors.New("record not found")
)

// IDLayout is the timestamp-derived record identifier format.
const IDLayout = "20060102-150405"

// NewID derives a record identifier from a timestamp at second resolution.
func NewID(t time.Time) string {
	return t.Format(IDLayout)
}

// Store keeps one JSON document per run under a base directory. It is
// single-writer: each phase performs one read-modify-write, and every write
// goes to a temp file renamed over the target so a crash mid-write cannot
// corrupt the prior record.
type Store struct {
	dir string
}

// NewStore creates the record directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating record dir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Path returns the on-disk location for a record id.
func (s *Store) Path(id string) string {
	return filepath.Join(s.dir, "wipe-"+id+".json")
}

// CreatePlan writes a new plan-phase record under id. An existing record
// with the same id fails with ErrRecordCollision and is left untouched.
func (s *Store) CreatePlan(id string, rec *Record) error {
	path := s.Path(id)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrRecordCollision, id)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking record %s: %w", id, err)
	}

	rec.Phase = PhasePlanned
	if err := s.write(path, rec); err != nil {
		return err
	}

	log.Info().Str("record_id", id).Str("path", path).Msg("plan record created")
	return nil
}

// Load reads a record by id.
func (s *Store) Load(id string) (*Record, error) {
	data, err := os.ReadFile(s.Path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
		}
		return nil, fmt.Errorf("reading record %s: %w", id, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing record %s: %w", id, err)
	}
	return &rec, nil
}

// AppendExecution merges the execution and verification results onto the
// stored record without altering any plan-phase field, then replaces the
// file atomically. ver may be nil when verification never ran.
func (s *Store) AppendExecution(id string, exec *execute.Result, ver *verify.Result) error {
	rec, err := s.Load(id)
	if err != nil {
		return err
	}

	rec.ExecutionPlan.StartTime = exec.StartTime
	rec.ExecutionPlan.EndTime = exec.EndTime
	rec.ExecutionPlan.Duration = exec.Duration
	rec.ExecutionPlan.ActualCommand = exec.Strategy.CommandLine()
	rec.ExecutionPlan.ActualMethod = exec.Strategy.Method
	rec.ExecutionPlan.Success = exec.Success
	rec.ExecutionPlan.IOErrors = exec.IOErrors
	rec.ExecutionPlan.Warnings = exec.Warnings

	switch {
	case !exec.Success:
		rec.Phase = PhaseFailed
	case ver != nil:
		rec.Phase = PhaseVerified
	default:
		rec.Phase = PhaseExecuted
	}

	if ver != nil {
		rec.Verification = &Verification{
			DeviceAccessible:   ver.DeviceAccessible,
			EraseSuccessful:    exec.Success && ver.Erased(),
			VerificationMethod: ver.Method,
			DataAnalysis: DataAnalysis{
				Status:        string(ver.Classification),
				Analysis:      ver.Analysis,
				NonZeroLines:  ver.NonZeroRows,
				HexdumpSample: ver.Sample,
			},
			Timestamp: ver.Timestamp,
		}
		if ver.PostEraseIdentity != nil {
			rec.PostEraseState = &PostEraseState{
				Model:    ver.PostEraseIdentity.Model,
				Serial:   ver.PostEraseIdentity.Serial,
				Firmware: ver.PostEraseIdentity.Firmware,
				Capacity: rec.DeviceInfo.Capacity,
			}
		}
	}

	if err := s.write(s.Path(id), rec); err != nil {
		return err
	}

	log.Info().
		Str("record_id", id).
		Str("phase", string(rec.Phase)).
		Msg("execution results appended")
	return nil
}

// write marshals rec and atomically replaces path. The temp file lives in
// the same directory so the rename stays on one filesystem.
func (s *Store) write(path string, rec *Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".wipe-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp record: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp record: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing temp record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp record: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing record: %w", err)
	}
	return nil
}
