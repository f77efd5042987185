package export

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"studio/internal/contenttypes"
	"studio/internal/core"
	"studio/internal/persistence"
)

type fakePosts struct {
	persistence.PostRepository
	posts    map[string]*core.Post
	exported []string
}

func (f *fakePosts) Get(_ context.Context, id string) (*core.Post, error) {
	p, ok := f.posts[id]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	return p, nil
}

func (f *fakePosts) MarkExported(_ context.Context, ids []string) error {
	f.exported = append(f.exported, ids...)
	return nil
}

type fakeExports struct {
	persistence.ExportRepository
	entries []core.ExportLogEntry
}

func (f *fakeExports) Create(_ context.Context, e *core.ExportLogEntry) error {
	f.entries = append(f.entries, *e)
	return nil
}

type fakeTx struct {
	db        *fakeDB
	committed bool
}

func (t *fakeTx) Commit() error {
	t.committed = true
	t.db.commits++
	return nil
}

func (t *fakeTx) Rollback() error                       { return nil }
func (t *fakeTx) Posts() persistence.PostRepository     { return t.db.posts }
func (t *fakeTx) Exports() persistence.ExportRepository { return t.db.exports }

type fakeDB struct {
	persistence.Database
	posts   *fakePosts
	exports *fakeExports
	commits int
}

func (d *fakeDB) Posts() persistence.PostRepository { return d.posts }

func (d *fakeDB) BeginTx(context.Context) (persistence.Transaction, error) {
	return &fakeTx{db: d}, nil
}

func newFakeDB(posts ...core.Post) *fakeDB {
	fp := &fakePosts{posts: map[string]*core.Post{}}
	for i := range posts {
		fp.posts[posts[i].ID] = &posts[i]
	}
	return &fakeDB{posts: fp, exports: &fakeExports{}}
}

func TestWriteCSV(t *testing.T) {
	posts := []core.Post{
		{Fields: map[string]string{"Hook": "Visste du, att", "Fakta": "rad 1\nrad 2", "CTA": `säg "hej"`}},
		{Fields: map[string]string{"Hook": "enkel"}},
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, []string{"Hook", "Fakta", "Förklaring", "CTA"}, posts); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	want := "Hook,Fakta,Förklaring,CTA\n" +
		"\"Visste du, att\",\"rad 1\nrad 2\",,\"säg \"\"hej\"\"\"\n" +
		"enkel,,,\n"
	if buf.String() != want {
		t.Errorf("WriteCSV() =\n%q\nwant\n%q", buf.String(), want)
	}
}

func TestColumns(t *testing.T) {
	reg := contenttypes.Default()
	tests := []struct {
		name      string
		storyType string
		posts     []core.Post
		want      []string
	}{
		{
			name:      "fixed instagram type",
			storyType: "snabbtips",
			want:      []string{"Tipsnummer", "Tips", "Förklaring", "CTA"},
		},
		{
			name:      "custom type uses present keys",
			storyType: contenttypes.CustomInstagram,
			posts: []core.Post{
				{Platform: core.PlatformInstagram, Fields: map[string]string{"Text": "a"}},
				{Platform: core.PlatformInstagram, Fields: map[string]string{"Bildtext": "b"}},
			},
			want: []string{"Bildtext", "Text"},
		},
		{
			name:      "unknown type",
			storyType: "okand",
			posts:     []core.Post{{Fields: map[string]string{"B": "1", "A": "2"}}},
			want:      []string{"A", "B"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Columns(reg, tt.storyType, tt.posts)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Columns() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilename(t *testing.T) {
	at := time.Date(2025, 3, 1, 23, 0, 0, 0, time.UTC)
	if got := Filename("snabbtips", at); got != "snabbtips-2025-03-01.csv" {
		t.Errorf("Filename() = %q", got)
	}
	if got := Filename("", at); got != "export-2025-03-01.csv" {
		t.Errorf("Filename() = %q", got)
	}
}

func TestExport(t *testing.T) {
	db := newFakeDB(
		core.Post{ID: "a", StoryType: "snabbtips", Platform: core.PlatformInstagram, Fields: map[string]string{"Tips": "1"}},
		core.Post{ID: "b", StoryType: "snabbtips", Platform: core.PlatformInstagram, Fields: map[string]string{"Tips": "2"}},
	)
	s := NewService(db, nil)
	s.now = func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }

	res, err := s.Export(context.Background(), Request{PostIDs: []string{"a", "b"}, MarkExported: true})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if res.Filename != "snabbtips-2025-03-01.csv" {
		t.Errorf("Filename = %q", res.Filename)
	}
	if want := "Tipsnummer,Tips,Förklaring,CTA\n,1,,\n,2,,\n"; string(res.Data) != want {
		t.Errorf("Data = %q, want %q", res.Data, want)
	}
	if len(db.exports.entries) != 1 || db.exports.entries[0].StoryType != "snabbtips" {
		t.Errorf("export log = %+v", db.exports.entries)
	}
	if !reflect.DeepEqual(db.posts.exported, []string{"a", "b"}) {
		t.Errorf("exported = %v", db.posts.exported)
	}
	if db.commits != 1 {
		t.Errorf("commits = %d", db.commits)
	}
}

func TestExportErrors(t *testing.T) {
	s := NewService(newFakeDB(), nil)

	if _, err := s.Export(context.Background(), Request{}); !errors.Is(err, ErrNoPosts) {
		t.Errorf("empty request error = %v", err)
	}
	if _, err := s.Export(context.Background(), Request{PostIDs: []string{"missing"}}); !errors.Is(err, persistence.ErrNotFound) {
		t.Errorf("missing post error = %v", err)
	}
}
