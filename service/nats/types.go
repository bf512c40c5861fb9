package nats

import (
	"encoding/json"
	"strings"
	"time"
)

// Change types carried by ChangeEvent.
const (
	ChangeInsert = "INSERT"
	ChangeUpdate = "UPDATE"
)

// ChangeEvent describes a row written to the row store. It is published to
// the subject "changes.{table}.{wallet_address}".
type ChangeEvent struct {
	Table         string          `json:"table"`
	Type          string          `json:"type"`
	WalletAddress string          `json:"wallet_address"`
	Record        json.RawMessage `json:"record"`
	CommitTime    time.Time       `json:"commit_timestamp"`
}

// NewChangeEvent marshals record into a ChangeEvent stamped with the current time.
func NewChangeEvent(table, changeType, wallet string, record any) (*ChangeEvent, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	return &ChangeEvent{
		Table:         table,
		Type:          changeType,
		WalletAddress: wallet,
		Record:        raw,
		CommitTime:    time.Now().UTC(),
	}, nil
}

// ChangeSubject returns the subject for a table's changes. An empty wallet
// yields the wildcard subject covering every wallet.
func ChangeSubject(table, wallet string) string {
	if wallet == "" {
		wallet = "*"
	}
	return SubjectPrefix + "." + table + "." + wallet
}

// subjectMatches reports whether subject matches pattern using NATS wildcard
// rules ("*" for one token, ">" for the remainder).
func subjectMatches(pattern, subject string) bool {
	pt := strings.Split(pattern, ".")
	st := strings.Split(subject, ".")
	for i, p := range pt {
		if p == ">" {
			return len(st) > i
		}
		if i >= len(st) {
			return false
		}
		if p != "*" && p != st[i] {
			return false
		}
	}
	return len(pt) == len(st)
}
