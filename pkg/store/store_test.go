package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/datatypes"

	"sentimentai/pkg/domain"
)

func newTestStores(t *testing.T) map[string]Store {
	t.Helper()
	gs, err := NewGormStore("sqlite://" + filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("new gorm store: %v", err)
	}
	t.Cleanup(func() { _ = gs.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": gs,
	}
}

func TestStoreUsers(t *testing.T) {
	for name, s := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			u := domain.User{ID: "u-1", FullName: "Sita", Email: "sita@example.com", PasswordHash: "hash", CreatedAt: time.Now().UTC()}
			if err := s.CreateUser(u); err != nil {
				t.Fatalf("create user: %v", err)
			}
			dup := u
			dup.ID = "u-2"
			if err := s.CreateUser(dup); !errors.Is(err, ErrEmailExists) {
				t.Fatalf("expected ErrEmailExists, got %v", err)
			}

			ok, err := s.HasUserEmail("sita@example.com")
			if err != nil || !ok {
				t.Fatalf("expected email to exist, ok=%v err=%v", ok, err)
			}
			ok, err = s.HasUserEmail("nobody@example.com")
			if err != nil || ok {
				t.Fatalf("expected unknown email, ok=%v err=%v", ok, err)
			}

			got, ok, err := s.GetUserByEmail("sita@example.com")
			if err != nil || !ok {
				t.Fatalf("get by email: ok=%v err=%v", ok, err)
			}
			if got.ID != "u-1" || got.FullName != "Sita" || got.PasswordHash != "hash" {
				t.Fatalf("unexpected user: %+v", got)
			}
			if _, ok, _ := s.GetUserByID("u-1"); !ok {
				t.Fatalf("expected user by id")
			}
			if _, ok, _ := s.GetUserByID("missing"); ok {
				t.Fatalf("expected missing user")
			}
		})
	}
}

func TestStoreResults(t *testing.T) {
	for name, s := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			base := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
			inputs := []domain.SentimentResult{
				{UserEmail: "a@example.com", Text: "first", Tokens: []string{"first"}, Vector: []float64{1, 0}, Prediction: "Positive", Confidence: 71.5, CreatedAt: base},
				{UserEmail: "b@example.com", Text: "other", Tokens: []string{}, Vector: []float64{0, 0}, Prediction: "Negative", Confidence: 60, CreatedAt: base.Add(time.Minute)},
				{UserEmail: "a@example.com", Text: "second", Tokens: []string{"second", "x"}, Vector: []float64{0, 1}, Prediction: "Negative", Confidence: 55.2, CreatedAt: base.Add(2 * time.Minute)},
			}
			for i := range inputs {
				if err := s.SaveResult(&inputs[i]); err != nil {
					t.Fatalf("save result: %v", err)
				}
				if inputs[i].ID == 0 {
					t.Fatalf("expected result id to be assigned")
				}
			}

			rows, err := s.ListResultsByEmail("a@example.com")
			if err != nil {
				t.Fatalf("list results: %v", err)
			}
			if len(rows) != 2 {
				t.Fatalf("expected 2 rows, got %d", len(rows))
			}
			if rows[0].Text != "second" || rows[1].Text != "first" {
				t.Fatalf("expected newest first, got %q then %q", rows[0].Text, rows[1].Text)
			}
			if len(rows[0].Tokens) != 2 || rows[0].Tokens[0] != "second" {
				t.Fatalf("unexpected tokens: %v", rows[0].Tokens)
			}
			if len(rows[0].Vector) != 2 || rows[0].Vector[1] != 1 {
				t.Fatalf("unexpected vector: %v", rows[0].Vector)
			}
			if rows[0].Confidence != 55.2 || rows[0].Prediction != "Negative" {
				t.Fatalf("unexpected prediction: %+v", rows[0])
			}

			empty, err := s.ListResultsByEmail("nobody@example.com")
			if err != nil || len(empty) != 0 {
				t.Fatalf("expected no rows, got %d err=%v", len(empty), err)
			}

			recent, err := s.RecentResults(2)
			if err != nil {
				t.Fatalf("recent results: %v", err)
			}
			if len(recent) != 2 || recent[0].Text != "second" || recent[1].Text != "other" {
				t.Fatalf("unexpected recent results: %+v", recent)
			}
		})
	}
}

func TestMemoryStoreSaveResultCopiesSlices(t *testing.T) {
	s := NewMemoryStore()
	r := domain.SentimentResult{UserEmail: "a@example.com", Tokens: []string{"x"}, Vector: []float64{1}, CreatedAt: time.Now()}
	if err := s.SaveResult(&r); err != nil {
		t.Fatalf("save: %v", err)
	}
	r.Tokens[0] = "mutated"
	rows, _ := s.ListResultsByEmail("a@example.com")
	if rows[0].Tokens[0] != "x" {
		t.Fatalf("stored result shares caller slice")
	}

	rows[0].Tokens[0] = "listed"
	rows[0].Vector[0] = 9
	recent, _ := s.RecentResults(1)
	recent[0].Tokens[0] = "recent"
	recent[0].Vector[0] = 7

	rows, _ = s.ListResultsByEmail("a@example.com")
	if rows[0].Tokens[0] != "x" || rows[0].Vector[0] != 1 {
		t.Fatalf("read results share stored slices: %+v", rows[0])
	}
}

func TestResultFromModelCorruptJSON(t *testing.T) {
	tests := []struct {
		name       string
		tokens     string
		vector     string
		wantTokens int
		wantVector int
	}{
		{name: "valid", tokens: `["a","b"]`, vector: `[1,0,1]`, wantTokens: 2, wantVector: 3},
		{name: "wrong element types", tokens: `["a",7,"b"]`, vector: `[1,"x",1]`},
		{name: "not json", tokens: `a,b`, vector: `{`},
		{name: "empty columns"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := resultFromModel(SentimentResultModel{
				ID:     3,
				Tokens: datatypes.JSON(tc.tokens),
				Vector: datatypes.JSON(tc.vector),
			})
			if got.Tokens == nil || got.Vector == nil {
				t.Fatalf("expected non-nil slices, got %+v", got)
			}
			if len(got.Tokens) != tc.wantTokens || len(got.Vector) != tc.wantVector {
				t.Fatalf("tokens=%v vector=%v", got.Tokens, got.Vector)
			}
		})
	}
}

func TestGormStoreCorruptRowReadsEmpty(t *testing.T) {
	gs, err := NewGormStore("sqlite://" + filepath.Join(t.TempDir(), "corrupt.db"))
	if err != nil {
		t.Fatalf("new gorm store: %v", err)
	}
	t.Cleanup(func() { _ = gs.Close() })
	row := SentimentResultModel{
		UserEmail:  "a@example.com",
		Text:       "bad",
		Tokens:     datatypes.JSON(`["a",7,"b"]`),
		Vector:     datatypes.JSON(`[1,"x",1]`),
		Prediction: "Positive",
		CreatedAt:  time.Now().UTC(),
	}
	if err := gs.db.Create(&row).Error; err != nil {
		t.Fatalf("insert row: %v", err)
	}
	rows, err := gs.ListResultsByEmail("a@example.com")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 || len(rows[0].Tokens) != 0 || len(rows[0].Vector) != 0 {
		t.Fatalf("expected empty tokens and vector, got %+v", rows)
	}
}

func TestDialectorFor(t *testing.T) {
	cases := []struct {
		dsn      string
		postgres bool
		wantErr  bool
	}{
		{dsn: "postgres://u:p@localhost:5432/db", postgres: true},
		{dsn: "postgresql://localhost/db", postgres: true},
		{dsn: "sqlite:///tmp/x.db"},
		{dsn: "file:test.db?cache=shared"},
		{dsn: "sentiment.db"},
		{dsn: "mysql://localhost/db", wantErr: true},
	}
	for _, tc := range cases {
		_, isPostgres, err := dialectorFor(tc.dsn)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%s: expected error", tc.dsn)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tc.dsn, err)
		}
		if isPostgres != tc.postgres {
			t.Fatalf("%s: postgres=%v, want %v", tc.dsn, isPostgres, tc.postgres)
		}
	}
}
