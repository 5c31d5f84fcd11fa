package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

const roomColumns = "id, created_at, updated_at, stage_arn, stage_endpoints, " +
	"participant_attributes, publishers, subscribers, active_session_id"

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRoomRecord(row rowScanner) (RoomRecord, error) {
	var (
		rec       RoomRecord
		endpoints []byte
		attrs     []byte
		active    sql.NullString
	)

	err := row.Scan(
		&rec.Id,
		&rec.CreatedAt,
		&rec.UpdatedAt,
		&rec.StageArn,
		&endpoints,
		&attrs,
		pq.Array(&rec.Publishers),
		pq.Array(&rec.Subscribers),
		&active,
	)
	if err != nil {
		return RoomRecord{}, err
	}

	if err := json.Unmarshal(endpoints, &rec.StageEndpoints); err != nil {
		return RoomRecord{}, fmt.Errorf("unmarshal stage endpoints: %w", err)
	}
	if err := json.Unmarshal(attrs, &rec.ParticipantAttributes); err != nil {
		return RoomRecord{}, fmt.Errorf("unmarshal participant attributes: %w", err)
	}
	rec.ActiveSessionId = active.String

	return rec, nil
}

func (db *PgRoomRepository) CreateRoomRecord(params CreateRoomRecordParams) (RoomRecord, error) {
	endpoints, err := json.Marshal(params.StageEndpoints)
	if err != nil {
		return RoomRecord{}, fmt.Errorf("marshal stage endpoints: %w", err)
	}

	row := db.conn.QueryRow(
		"INSERT INTO rooms (id, created_at, updated_at, stage_arn, stage_endpoints, "+
			"participant_attributes, publishers, subscribers) "+
			"VALUES ($1, $2, $2, $3, $4, '{}', '{}', '{}') RETURNING "+roomColumns,
		params.Id,
		time.Now().UTC(),
		params.StageArn,
		endpoints,
	)

	rec, err := scanRoomRecord(row)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return RoomRecord{}, ErrRecordExists
		}
		return RoomRecord{}, err
	}

	return rec, nil
}

func (db *PgRoomRepository) GetRoomRecord(id string) (RoomRecord, error) {
	row := db.conn.QueryRow(
		"SELECT "+roomColumns+" FROM rooms WHERE id = $1 LIMIT 1",
		id,
	)

	rec, err := scanRoomRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RoomRecord{}, ErrRecordNotFound
		}
		return RoomRecord{}, err
	}

	return rec, nil
}

// recordScan collects scan targets for a projected read and decodes the
// jsonb columns once all targets are filled.
type recordScan struct {
	rec       *RoomRecord
	endpoints []byte
	attrs     []byte
	active    sql.NullString
}

func (s *recordScan) target(attr string) (interface{}, error) {
	switch attr {
	case AttrId:
		return &s.rec.Id, nil
	case AttrCreatedAt:
		return &s.rec.CreatedAt, nil
	case AttrUpdatedAt:
		return &s.rec.UpdatedAt, nil
	case AttrStageArn:
		return &s.rec.StageArn, nil
	case AttrStageEndpoints:
		return &s.endpoints, nil
	case AttrParticipantAttributes:
		return &s.attrs, nil
	case AttrPublishers:
		return pq.Array(&s.rec.Publishers), nil
	case AttrSubscribers:
		return pq.Array(&s.rec.Subscribers), nil
	case AttrActiveSessionId:
		return &s.active, nil
	default:
		return nil, fmt.Errorf("unknown attribute %q", attr)
	}
}

func (s *recordScan) finish() error {
	if s.endpoints != nil {
		if err := json.Unmarshal(s.endpoints, &s.rec.StageEndpoints); err != nil {
			return fmt.Errorf("unmarshal stage endpoints: %w", err)
		}
	}
	if s.attrs != nil {
		if err := json.Unmarshal(s.attrs, &s.rec.ParticipantAttributes); err != nil {
			return fmt.Errorf("unmarshal participant attributes: %w", err)
		}
	}
	s.rec.ActiveSessionId = s.active.String
	return nil
}

var allAttrs = []string{
	AttrId, AttrCreatedAt, AttrUpdatedAt, AttrStageArn, AttrStageEndpoints,
	AttrParticipantAttributes, AttrPublishers, AttrSubscribers, AttrActiveSessionId,
}

// ListRoomRecords is a scan-style bulk read with optional field projection
// and equality filters. It is meant for batch jobs only, never the request
// path.
func (db *PgRoomRepository) ListRoomRecords(fields []string, filters map[string]string) ([]RoomRecord, error) {
	if len(fields) == 0 {
		fields = allAttrs
	}

	cols := make([]string, 0, len(fields))
	for _, f := range fields {
		col, ok := attrColumns[f]
		if !ok {
			return nil, fmt.Errorf("unknown attribute %q", f)
		}
		cols = append(cols, col)
	}

	var (
		where []string
		args  []interface{}
	)
	for attr, val := range filters {
		col, ok := attrColumns[attr]
		if !ok {
			return nil, fmt.Errorf("unknown attribute %q", attr)
		}
		args = append(args, val)
		where = append(where, col+" = $"+strconv.Itoa(len(args)))
	}

	query := "SELECT " + strings.Join(cols, ", ") + " FROM rooms"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []RoomRecord
	for rows.Next() {
		var rec RoomRecord
		rs := &recordScan{rec: &rec}

		targets := make([]interface{}, 0, len(fields))
		for _, f := range fields {
			t, err := rs.target(f)
			if err != nil {
				return nil, err
			}
			targets = append(targets, t)
		}

		if err := rows.Scan(targets...); err != nil {
			return nil, err
		}
		if err := rs.finish(); err != nil {
			return nil, err
		}

		records = append(records, rec)
	}

	return records, rows.Err()
}

// ListActiveRoomRecords returns the reconciliation projection of every room
// with a live session. Served by the partial index on active_session_id
// rather than a full scan.
func (db *PgRoomRepository) ListActiveRoomRecords() ([]ActiveRoomRecord, error) {
	rows, err := db.conn.Query(
		"SELECT id, stage_arn, active_session_id, updated_at FROM rooms " +
			"WHERE active_session_id IS NOT NULL",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ActiveRoomRecord
	for rows.Next() {
		var rec ActiveRoomRecord
		if err := rows.Scan(&rec.Id, &rec.StageArn, &rec.ActiveSessionId, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// UpdateRoomParticipant applies a participant's attribute, publisher and
// subscriber deltas as one atomic write conditioned on the record still
// existing. Partial application is impossible: all clause groups share a
// single UPDATE statement.
func (db *PgRoomRepository) UpdateRoomParticipant(params UpdateRoomParticipantParams) (RoomRecord, error) {
	var muts []Mutation

	if params.Attributes != nil {
		muts = append(muts, SetParticipantAttributes{
			ParticipantId: params.ParticipantId,
			Attributes:    params.Attributes,
		})
	}

	if params.Publish != nil {
		if *params.Publish {
			muts = append(muts, AddToSet{Set: AttrPublishers, Member: params.ParticipantId})
		} else {
			muts = append(muts, RemoveFromSet{Set: AttrPublishers, Member: params.ParticipantId})
		}
	}

	if params.Connected != nil {
		if *params.Connected {
			muts = append(muts, AddToSet{Set: AttrSubscribers, Member: params.ParticipantId})
		} else {
			muts = append(muts, RemoveFromSet{Set: AttrSubscribers, Member: params.ParticipantId})
		}
	}

	query, args, err := buildUpdate(params.RoomId, muts, false, time.Now().UTC())
	if err != nil {
		return RoomRecord{}, err
	}

	row := db.conn.QueryRow(query+" RETURNING "+roomColumns, args...)

	rec, err := scanRoomRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RoomRecord{}, ErrRecordNotFound
		}
		return RoomRecord{}, err
	}

	return rec, nil
}

// UpdateRoomRecord applies attribute-level mutations. With onlyIfActive the
// write is additionally conditioned on active_session_id still being set,
// so a reconciliation write no-ops instead of resurrecting presence data
// for a room already torn down.
func (db *PgRoomRepository) UpdateRoomRecord(id string, muts []Mutation, onlyIfActive bool) error {
	query, args, err := buildUpdate(id, muts, onlyIfActive, time.Now().UTC())
	if err != nil {
		return err
	}

	res, err := db.conn.Exec(query, args...)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if onlyIfActive {
			return ErrPreconditionFailed
		}
		return ErrRecordNotFound
	}

	return nil
}

// Touch rewrites updated_at and nothing else. This is the documented
// heartbeat contract with the work queue: a touched room produces a
// distinct message body on the next scheduler tick instead of being
// collapsed by the deduplication window.
func (db *PgRoomRepository) Touch(id string, onlyIfActive bool) error {
	return db.UpdateRoomRecord(id, nil, onlyIfActive)
}

func (db *PgRoomRepository) DeleteRoomRecord(id string) error {
	_, err := db.conn.Exec("DELETE FROM rooms WHERE id = $1", id)
	return err
}
