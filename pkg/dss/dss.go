// Package dss is the Durable State Store (§4.1): atomic persistence of
// per-node consensus state, the derived application tables, and the
// cluster configuration file. Every write goes through a sibling temp
// file, an fsync, and an atomic rename-over-target — never a truncate-
// and-rewrite-in-place — the way
// original_source/startup-news-backend/consensus.py's save_raft_state
// does it.
package dss

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"blograft/pkg/membership"
	"blograft/pkg/raftlog"
	"blograft/pkg/statemachine"
)

// ConsensusState is the persisted shape of a node's persistent Raft state
// (§3): currentTerm, votedFor, and the full log.
type ConsensusState struct {
	CurrentTerm uint64           `json:"currentTerm"`
	VotedFor    string           `json:"votedFor"`
	Log         []raftlog.Entry  `json:"log"`
}

type wireEntry struct {
	Term      uint64   `json:"term"`
	Operation string   `json:"operation"`
	Params    []string `json:"params"`
}

type wireConsensusState struct {
	CurrentTerm uint64      `json:"currentTerm"`
	VotedFor    *string     `json:"votedFor"`
	Log         []wireEntry `json:"log"`
}

// Store is the on-disk location of one node's durable state.
type Store struct {
	raftPath      string
	postsPath     string
	usersPath     string
	writersPath   string
	commentsPath  string
	replicasPath  string
}

// New returns a Store rooted at the given file paths, matching the
// replicas.json peer record's *_store fields.
func New(raftPath, postsPath, usersPath, writersPath, commentsPath, replicasPath string) *Store {
	return &Store{
		raftPath:     raftPath,
		postsPath:    postsPath,
		usersPath:    usersPath,
		writersPath:  writersPath,
		commentsPath: commentsPath,
		replicasPath: replicasPath,
	}
}

// atomicWrite writes data to a sibling temp file, fsyncs it, and renames
// it over path. On any failure the temp file is best-effort removed.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("dss: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	cleanupOnErr := func(cause error) error {
		tmp.Close()
		os.Remove(tmpName)
		return cause
	}

	if _, err := tmp.Write(data); err != nil {
		return cleanupOnErr(fmt.Errorf("dss: write temp file: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return cleanupOnErr(fmt.Errorf("dss: fsync temp file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		return cleanupOnErr(fmt.Errorf("dss: close temp file: %w", err))
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("dss: rename temp file over target: %w", err)
	}
	return nil
}

// SaveConsensus atomically persists currentTerm, votedFor, and the log.
// A failure here is Fatal (§7): the caller must refuse further mutations.
func (s *Store) SaveConsensus(state ConsensusState) error {
	wire := wireConsensusState{CurrentTerm: state.CurrentTerm, Log: make([]wireEntry, len(state.Log))}
	if state.VotedFor != "" {
		v := state.VotedFor
		wire.VotedFor = &v
	}
	for i, e := range state.Log {
		wire.Log[i] = wireEntry{Term: e.Term, Operation: string(e.Operation), Params: e.Params}
	}

	data, err := json.MarshalIndent(wire, "", "  ")
	if err != nil {
		return fmt.Errorf("dss: marshal consensus state: %w", err)
	}
	return atomicWrite(s.raftPath, data)
}

// LoadConsensus returns the last persisted state, or a fresh zero state
// if no file exists or it cannot be parsed.
func (s *Store) LoadConsensus() ConsensusState {
	data, err := os.ReadFile(s.raftPath)
	if err != nil {
		return ConsensusState{}
	}

	var wire wireConsensusState
	if err := json.Unmarshal(data, &wire); err != nil {
		return ConsensusState{}
	}

	state := ConsensusState{CurrentTerm: wire.CurrentTerm, Log: make([]raftlog.Entry, len(wire.Log))}
	if wire.VotedFor != nil {
		state.VotedFor = *wire.VotedFor
	}
	for i, e := range wire.Log {
		state.Log[i] = raftlog.Entry{Term: e.Term, Operation: raftlog.Operation(e.Operation), Params: e.Params}
	}
	return state
}

// SaveAppState performs the idempotent full-rewrite of the four CSV
// application tables (§6). Not required to be atomic with SaveConsensus
// (§9 O1) — the log remains the source of truth on crash recovery.
func (s *Store) SaveAppState(snap statemachine.Snapshot) error {
	if err := s.saveUsers(snap.Subscribers); err != nil {
		return err
	}
	if err := s.saveWriters(snap.Writers); err != nil {
		return err
	}
	if err := s.savePosts(snap.Posts); err != nil {
		return err
	}
	if err := s.saveComments(snap.Comments); err != nil {
		return err
	}
	return nil
}

func (s *Store) saveUsers(subscribers []string) error {
	rows := [][]string{{"email"}}
	for _, e := range subscribers {
		rows = append(rows, []string{e})
	}
	return writeCSV(s.usersPath, rows)
}

func (s *Store) saveWriters(writers []statemachine.Writer) error {
	rows := [][]string{{"email", "name", "password"}}
	for _, w := range writers {
		rows = append(rows, []string{w.Email, w.Name, w.PasswordHash})
	}
	return writeCSV(s.writersPath, rows)
}

func (s *Store) savePosts(posts []statemachine.Post) error {
	rows := [][]string{{"post_id", "author", "title", "content", "timestamp", "likes"}}
	for _, p := range posts {
		likes := ""
		for i, email := range p.LikeList() {
			if i > 0 {
				likes += ";"
			}
			likes += email
		}
		rows = append(rows, []string{p.ID, p.Author, p.Title, p.Content, p.Timestamp, likes})
	}
	return writeCSV(s.postsPath, rows)
}

func (s *Store) saveComments(comments []statemachine.PostComment) error {
	rows := [][]string{{"post_id", "email", "text", "timestamp"}}
	for _, c := range comments {
		rows = append(rows, []string{c.PostID, c.Email, c.Text, c.Timestamp})
	}
	return writeCSV(s.commentsPath, rows)
}

func writeCSV(path string, rows [][]string) error {
	buf, err := encodeCSV(rows)
	if err != nil {
		return fmt.Errorf("dss: encode %s: %w", path, err)
	}
	if err := atomicWrite(path, buf); err != nil {
		return fmt.Errorf("dss: write %s: %w", path, err)
	}
	return nil
}

func encodeCSV(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, r := range rows {
		if err := w.Write(r); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// LoadAppState reads the four CSV files back into a Snapshot. Missing
// files yield empty tables (§9 O1 treats the CSVs as a rebuildable cache).
func (s *Store) LoadAppState() statemachine.Snapshot {
	var snap statemachine.Snapshot

	if rows, err := readCSV(s.usersPath); err == nil {
		for _, row := range rows[skipHeader(rows):] {
			if len(row) >= 1 {
				snap.Subscribers = append(snap.Subscribers, row[0])
			}
		}
	}

	if rows, err := readCSV(s.writersPath); err == nil {
		for _, row := range rows[skipHeader(rows):] {
			if len(row) >= 3 {
				snap.Writers = append(snap.Writers, statemachine.Writer{Email: row[0], Name: row[1], PasswordHash: row[2]})
			}
		}
	}

	if rows, err := readCSV(s.postsPath); err == nil {
		for _, row := range rows[skipHeader(rows):] {
			if len(row) >= 6 {
				post := statemachine.Post{ID: row[0], Author: row[1], Title: row[2], Content: row[3], Timestamp: row[4]}
				post.Likes = make(map[string]struct{})
				if row[5] != "" {
					for _, email := range splitSemicolon(row[5]) {
						post.Likes[email] = struct{}{}
					}
				}
				snap.Posts = append(snap.Posts, post)
			}
		}
	}

	if rows, err := readCSV(s.commentsPath); err == nil {
		for _, row := range rows[skipHeader(rows):] {
			if len(row) >= 4 {
				snap.Comments = append(snap.Comments, statemachine.PostComment{
					PostID:  row[0],
					Comment: statemachine.Comment{Email: row[1], Text: row[2], Timestamp: row[3]},
				})
			}
		}
	}

	return snap
}

func skipHeader(rows [][]string) int {
	if len(rows) > 0 {
		return 1
	}
	return 0
}

func splitSemicolon(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ';' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return csv.NewReader(f).ReadAll()
}

// replicasFile is the on-disk shape of replicas.json (§6).
type replicasFile struct {
	Replicas []membership.Peer `json:"replicas"`
}

// SaveReplicas rewrites replicas.json with the current peer set.
func (s *Store) SaveReplicas(peers []membership.Peer) error {
	data, err := json.MarshalIndent(replicasFile{Replicas: peers}, "", "  ")
	if err != nil {
		return fmt.Errorf("dss: marshal replicas: %w", err)
	}
	return atomicWrite(s.replicasPath, data)
}

// LoadReplicas reads replicas.json, returning an empty slice if absent.
func (s *Store) LoadReplicas() ([]membership.Peer, error) {
	data, err := os.ReadFile(s.replicasPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("dss: read replicas file: %w", err)
	}
	var rf replicasFile
	if err := json.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("dss: parse replicas file: %w", err)
	}
	return rf.Replicas, nil
}
