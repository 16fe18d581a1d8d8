package query_test

import (
	"testing"

	"github.com/mcutler/loom/pkg/query"
)

func testProjection() *query.ProjectionMap {
	return query.NewProjectionMap("public", "projects", "p").
		Project("id", "id").
		Project("name", "name").
		Project("created_at", "createdAt")
}

func joinedProjection() *query.ProjectionMap {
	return query.NewProjectionMap("public", "steps", "s").
		Project("id", "id").
		Project("title", "title").
		Join("public", "projects", "p", "INNER JOIN", "s.project_id = p.id").
		Project("name", "projectName")
}

func ptr(s string) *string { return &s }

func TestProjectionMapTable(t *testing.T) {
	p := testProjection()
	got := p.Table()
	want := "public.projects p"
	if got != want {
		t.Errorf("Table() = %q, want %q", got, want)
	}
}

func TestProjectionMapAlias(t *testing.T) {
	p := testProjection()
	if got := p.Alias(); got != "p" {
		t.Errorf("Alias() = %q, want %q", got, "p")
	}
}

func TestProjectionMapColumns(t *testing.T) {
	p := testProjection()
	got := p.Columns()
	want := "p.id, p.name, p.created_at"
	if got != want {
		t.Errorf("Columns() = %q, want %q", got, want)
	}
}

func TestProjectionMapFrom(t *testing.T) {
	t.Run("no joins", func(t *testing.T) {
		p := testProjection()
		if got := p.From(); got != "public.projects p" {
			t.Errorf("From() = %q", got)
		}
	})

	t.Run("with join", func(t *testing.T) {
		p := joinedProjection()
		want := "public.steps s INNER JOIN public.projects p ON s.project_id = p.id"
		if got := p.From(); got != want {
			t.Errorf("From() = %q, want %q", got, want)
		}
	})
}

func TestProjectionMapJoinQualifiesLaterColumns(t *testing.T) {
	p := joinedProjection()

	if got := p.Column("title"); got != "s.title" {
		t.Errorf("Column(title) = %q, want s.title", got)
	}
	if got := p.Column("projectName"); got != "p.name" {
		t.Errorf("Column(projectName) = %q, want p.name", got)
	}
}

func TestProjectionMapColumnLookup(t *testing.T) {
	p := testProjection()

	tests := []struct {
		name     string
		viewName string
		want     string
	}{
		{"mapped field", "name", "p.name"},
		{"mapped camel", "createdAt", "p.created_at"},
		{"unmapped passthrough", "p.owner_id", "p.owner_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Column(tt.viewName); got != tt.want {
				t.Errorf("Column(%q) = %q, want %q", tt.viewName, got, tt.want)
			}
		})
	}
}

func TestParseSortFields(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []query.SortField
	}{
		{
			name:  "empty string",
			input: "",
			want:  nil,
		},
		{
			name:  "single ascending",
			input: "name",
			want:  []query.SortField{{Field: "name", Descending: false}},
		},
		{
			name:  "single descending",
			input: "-createdAt",
			want:  []query.SortField{{Field: "createdAt", Descending: true}},
		},
		{
			name:  "multiple mixed",
			input: "name,-createdAt",
			want: []query.SortField{
				{Field: "name", Descending: false},
				{Field: "createdAt", Descending: true},
			},
		},
		{
			name:  "with spaces",
			input: " name , -createdAt ",
			want: []query.SortField{
				{Field: "name", Descending: false},
				{Field: "createdAt", Descending: true},
			},
		},
		{
			name:  "empty parts skipped",
			input: "name,,createdAt",
			want: []query.SortField{
				{Field: "name", Descending: false},
				{Field: "createdAt", Descending: false},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := query.ParseSortFields(tt.input)
			if tt.want == nil {
				if got != nil {
					t.Errorf("ParseSortFields(%q) = %v, want nil", tt.input, got)
				}
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseSortFields(%q) length = %d, want %d", tt.input, len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ParseSortFields(%q)[%d] = %v, want %v", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestBuilderBuild(t *testing.T) {
	b := query.NewBuilder(testProjection())
	sql, args := b.Build()

	wantSQL := "SELECT p.id, p.name, p.created_at FROM public.projects p"
	if sql != wantSQL {
		t.Errorf("Build() sql = %q, want %q", sql, wantSQL)
	}
	if len(args) != 0 {
		t.Errorf("Build() args = %v, want empty", args)
	}
}

func TestBuilderBuildWithJoin(t *testing.T) {
	b := query.NewBuilder(joinedProjection())
	b.WhereEquals("p.owner_id", "user-1")
	sql, args := b.Build()

	wantSQL := "SELECT s.id, s.title, p.name FROM public.steps s INNER JOIN public.projects p ON s.project_id = p.id WHERE p.owner_id = $1"
	if sql != wantSQL {
		t.Errorf("sql = %q, want %q", sql, wantSQL)
	}
	if len(args) != 1 || args[0] != "user-1" {
		t.Errorf("args = %v, want [user-1]", args)
	}
}

func TestBuilderBuildCount(t *testing.T) {
	b := query.NewBuilder(testProjection())
	sql, args := b.BuildCount()

	wantSQL := "SELECT COUNT(*) FROM public.projects p"
	if sql != wantSQL {
		t.Errorf("BuildCount() sql = %q, want %q", sql, wantSQL)
	}
	if len(args) != 0 {
		t.Errorf("BuildCount() args = %v, want empty", args)
	}
}

func TestBuilderBuildPage(t *testing.T) {
	b := query.NewBuilder(testProjection(), query.SortField{Field: "createdAt", Descending: true})
	sql, args := b.BuildPage(2, 10)

	wantSQL := "SELECT p.id, p.name, p.created_at FROM public.projects p ORDER BY p.created_at DESC LIMIT 10 OFFSET 10"
	if sql != wantSQL {
		t.Errorf("BuildPage() sql = %q, want %q", sql, wantSQL)
	}
	if len(args) != 0 {
		t.Errorf("BuildPage() args = %v, want empty", args)
	}
}

func TestBuilderBuildSingle(t *testing.T) {
	b := query.NewBuilder(testProjection())
	sql, args := b.BuildSingle("id", "abc-123")

	wantSQL := "SELECT p.id, p.name, p.created_at FROM public.projects p WHERE p.id = $1"
	if sql != wantSQL {
		t.Errorf("BuildSingle() sql = %q, want %q", sql, wantSQL)
	}
	if len(args) != 1 || args[0] != "abc-123" {
		t.Errorf("BuildSingle() args = %v, want [abc-123]", args)
	}
}

func TestBuilderBuildSingleOrNull(t *testing.T) {
	b := query.NewBuilder(testProjection())
	b.WhereEquals("name", "api")
	sql, args := b.BuildSingleOrNull()

	wantSQL := "SELECT p.id, p.name, p.created_at FROM public.projects p WHERE p.name = $1 LIMIT 1"
	if sql != wantSQL {
		t.Errorf("BuildSingleOrNull() sql = %q, want %q", sql, wantSQL)
	}
	if len(args) != 1 || args[0] != "api" {
		t.Errorf("BuildSingleOrNull() args = %v, want [api]", args)
	}
}

func TestBuilderWhereEqualsNilSkipped(t *testing.T) {
	b := query.NewBuilder(testProjection())
	b.WhereEquals("name", nil)
	sql, args := b.Build()

	wantSQL := "SELECT p.id, p.name, p.created_at FROM public.projects p"
	if sql != wantSQL {
		t.Errorf("sql = %q, want %q", sql, wantSQL)
	}
	if len(args) != 0 {
		t.Errorf("args = %v, want empty", args)
	}
}

func TestBuilderWhereContains(t *testing.T) {
	b := query.NewBuilder(testProjection())
	b.WhereContains("name", ptr("api"))
	sql, args := b.Build()

	wantSQL := "SELECT p.id, p.name, p.created_at FROM public.projects p WHERE p.name ILIKE $1"
	if sql != wantSQL {
		t.Errorf("sql = %q, want %q", sql, wantSQL)
	}
	if len(args) != 1 || args[0] != "%api%" {
		t.Errorf("args = %v, want [%%api%%]", args)
	}
}

func TestBuilderWhereIn(t *testing.T) {
	b := query.NewBuilder(testProjection())
	b.WhereIn("id", []any{"a", "b", "c"})
	sql, args := b.Build()

	wantSQL := "SELECT p.id, p.name, p.created_at FROM public.projects p WHERE p.id IN ($1, $2, $3)"
	if sql != wantSQL {
		t.Errorf("sql = %q, want %q", sql, wantSQL)
	}
	if len(args) != 3 {
		t.Errorf("args length = %d, want 3", len(args))
	}
}

func TestBuilderWhereNullable(t *testing.T) {
	t.Run("nil value generates IS NULL", func(t *testing.T) {
		b := query.NewBuilder(testProjection())
		b.WhereNullable("name", nil)
		sql, args := b.Build()

		wantSQL := "SELECT p.id, p.name, p.created_at FROM public.projects p WHERE p.name IS NULL"
		if sql != wantSQL {
			t.Errorf("sql = %q, want %q", sql, wantSQL)
		}
		if len(args) != 0 {
			t.Errorf("args = %v, want empty", args)
		}
	})

	t.Run("non-nil value generates equals", func(t *testing.T) {
		b := query.NewBuilder(testProjection())
		b.WhereNullable("name", "api")
		sql, args := b.Build()

		wantSQL := "SELECT p.id, p.name, p.created_at FROM public.projects p WHERE p.name = $1"
		if sql != wantSQL {
			t.Errorf("sql = %q, want %q", sql, wantSQL)
		}
		if len(args) != 1 || args[0] != "api" {
			t.Errorf("args = %v, want [api]", args)
		}
	})
}

func TestBuilderWhereSearch(t *testing.T) {
	b := query.NewBuilder(testProjection())
	b.WhereSearch(ptr("api"), "name", "id")
	sql, args := b.Build()

	wantSQL := "SELECT p.id, p.name, p.created_at FROM public.projects p WHERE (p.name ILIKE $1 OR p.id ILIKE $2)"
	if sql != wantSQL {
		t.Errorf("sql = %q, want %q", sql, wantSQL)
	}
	if len(args) != 2 || args[0] != "%api%" || args[1] != "%api%" {
		t.Errorf("args = %v, want [%%api%% %%api%%]", args)
	}
}

func TestBuilderMultipleConditions(t *testing.T) {
	b := query.NewBuilder(testProjection())
	b.WhereEquals("name", "api")
	b.WhereContains("id", ptr("abc"))
	sql, args := b.Build()

	wantSQL := "SELECT p.id, p.name, p.created_at FROM public.projects p WHERE p.name = $1 AND p.id ILIKE $2"
	if sql != wantSQL {
		t.Errorf("sql = %q, want %q", sql, wantSQL)
	}
	if len(args) != 2 {
		t.Errorf("args length = %d, want 2", len(args))
	}
}

func TestBuilderOrderByFields(t *testing.T) {
	b := query.NewBuilder(testProjection(), query.SortField{Field: "id", Descending: false})
	b.OrderByFields([]query.SortField{
		{Field: "createdAt", Descending: true},
		{Field: "name", Descending: false},
	})
	sql, _ := b.Build()

	wantSQL := "SELECT p.id, p.name, p.created_at FROM public.projects p ORDER BY p.created_at DESC, p.name ASC"
	if sql != wantSQL {
		t.Errorf("sql = %q, want %q", sql, wantSQL)
	}
}

func TestBuilderDefaultSort(t *testing.T) {
	b := query.NewBuilder(testProjection(), query.SortField{Field: "createdAt", Descending: true})
	sql, _ := b.Build()

	wantSQL := "SELECT p.id, p.name, p.created_at FROM public.projects p ORDER BY p.created_at DESC"
	if sql != wantSQL {
		t.Errorf("sql = %q, want %q", sql, wantSQL)
	}
}

func TestBuilderMultiFieldDefaultSort(t *testing.T) {
	b := query.NewBuilder(
		testProjection(),
		query.SortField{Field: "name"},
		query.SortField{Field: "createdAt", Descending: true},
	)
	sql, _ := b.Build()

	wantSQL := "SELECT p.id, p.name, p.created_at FROM public.projects p ORDER BY p.name ASC, p.created_at DESC"
	if sql != wantSQL {
		t.Errorf("sql = %q, want %q", sql, wantSQL)
	}
}

func TestBuilderBuildCountWithConditions(t *testing.T) {
	b := query.NewBuilder(testProjection())
	b.WhereEquals("name", "api")
	sql, args := b.BuildCount()

	wantSQL := "SELECT COUNT(*) FROM public.projects p WHERE p.name = $1"
	if sql != wantSQL {
		t.Errorf("sql = %q, want %q", sql, wantSQL)
	}
	if len(args) != 1 || args[0] != "api" {
		t.Errorf("args = %v, want [api]", args)
	}
}

func TestBuilderBuildPageWithConditions(t *testing.T) {
	b := query.NewBuilder(testProjection(), query.SortField{Field: "id"})
	b.WhereContains("name", ptr("report"))
	sql, args := b.BuildPage(3, 25)

	wantSQL := "SELECT p.id, p.name, p.created_at FROM public.projects p WHERE p.name ILIKE $1 ORDER BY p.id ASC LIMIT 25 OFFSET 50"
	if sql != wantSQL {
		t.Errorf("sql = %q, want %q", sql, wantSQL)
	}
	if len(args) != 1 || args[0] != "%report%" {
		t.Errorf("args = %v, want [%%report%%]", args)
	}
}
