package sessionstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/domino14/review_engine/internal/review"
)

// SessionKey is where the live session is kept. There is only ever one.
const SessionKey = "active_review_session"

// Adapter saves and restores the live session. Persistence is best effort:
// write failures are logged and dropped, and anything unreadable is treated
// as if nothing had been saved.
type Adapter struct {
	store Store
}

func NewAdapter(store Store) *Adapter {
	return &Adapter{store: store}
}

type sessionFields review.Session

// record is the stored form of a session: the session itself with its
// timestamps written out as ISO-8601 strings.
type record struct {
	*sessionFields
	StartTime string  `json:"startTime"`
	EndTime   *string `json:"endTime,omitempty"`
}

func encode(s *review.Session) ([]byte, error) {
	rec := record{
		sessionFields: (*sessionFields)(s),
		StartTime:     s.StartTime.Format(time.RFC3339Nano),
	}
	if s.EndTime != nil {
		end := s.EndTime.Format(time.RFC3339Nano)
		rec.EndTime = &end
	}
	return json.Marshal(rec)
}

func decode(bts []byte) (*review.Session, error) {
	rec := record{sessionFields: &sessionFields{}}
	if err := json.Unmarshal(bts, &rec); err != nil {
		return nil, err
	}
	s := (*review.Session)(rec.sessionFields)
	if s.ID == "" {
		return nil, errors.New("record has no session id")
	}
	start, err := time.Parse(time.RFC3339Nano, rec.StartTime)
	if err != nil {
		return nil, fmt.Errorf("bad startTime: %w", err)
	}
	s.StartTime = start
	s.EndTime = nil
	if rec.EndTime != nil {
		end, err := time.Parse(time.RFC3339Nano, *rec.EndTime)
		if err != nil {
			return nil, fmt.Errorf("bad endTime: %w", err)
		}
		s.EndTime = &end
	}
	return s, nil
}

// Save overwrites the stored session.
func (a *Adapter) Save(s *review.Session) {
	if s == nil {
		return
	}
	bts, err := encode(s)
	if err != nil {
		log.Err(err).Str("session", s.ID).Msg("session-encode-failed")
		return
	}
	if err := a.store.Put(SessionKey, bts); err != nil {
		log.Err(err).Str("session", s.ID).Msg("session-save-failed")
	}
}

// Load returns the stored session, or nil if there is none or it can't be
// read back.
func (a *Adapter) Load() *review.Session {
	bts, err := a.store.Get(SessionKey)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Err(err).Msg("session-load-failed")
		}
		return nil
	}
	s, err := decode(bts)
	if err != nil {
		log.Err(err).Msg("session-record-malformed")
		return nil
	}
	return s
}

// Clear removes the stored session.
func (a *Adapter) Clear() {
	if err := a.store.Delete(SessionKey); err != nil {
		log.Err(err).Msg("session-clear-failed")
	}
}
