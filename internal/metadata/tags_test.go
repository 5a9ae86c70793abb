package metadata

import (
	"reflect"
	"testing"
)

func TestMergeTagsIdempotent(t *testing.T) {
	names := []string{"invoice", "tax", "draft", "invoice"}
	confs := []int{8, 9, 3, 10}

	once := New()
	if err := once.MergeTags(names, confs); err != nil {
		t.Fatal(err)
	}
	twice := once.Clone()
	if err := twice.MergeTags(names, confs); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(once.Tags, twice.Tags) {
		t.Fatalf("merge not idempotent: %v vs %v", once.Tags, twice.Tags)
	}
	want := []Tag{{"invoice", 10}, {"tax", 9}}
	if !reflect.DeepEqual(once.Tags, want) {
		t.Fatalf("tags = %v, want %v", once.Tags, want)
	}
}

func TestMergeTagsLengthMismatch(t *testing.T) {
	r := New()
	if err := r.MergeTags([]string{"a", "b"}, []int{9}); err == nil {
		t.Fatal("expected error")
	}
	if len(r.Tags) != 0 {
		t.Fatal("record mutated on error")
	}
}

func TestAddTagsKeepsMax(t *testing.T) {
	r := New()
	r.AddTags(Tag{"a", 4}, Tag{"b", 6}, Tag{"a", 7}, Tag{"a", 2}, Tag{" ", 9})
	want := []Tag{{"a", 7}, {"b", 6}}
	if !reflect.DeepEqual(r.Tags, want) {
		t.Fatalf("tags = %v, want %v", r.Tags, want)
	}
}

func TestApplyReplacements(t *testing.T) {
	testCases := []struct {
		name string
		tags []Tag
		repl map[string]string
		want []Tag
	}{
		{
			name: "rename",
			tags: []Tag{{"Invoice", 8}, {"tax", 9}},
			repl: map[string]string{"Invoice": "invoice"},
			want: []Tag{{"invoice", 8}, {"tax", 9}},
		},
		{
			name: "delete",
			tags: []Tag{{"junk", 8}, {"tax", 9}},
			repl: map[string]string{"junk": ""},
			want: []Tag{{"tax", 9}},
		},
		{
			name: "collapse keeps max at first position",
			tags: []Tag{{"bills", 7}, {"tax", 9}, {"Bills", 10}},
			repl: map[string]string{"Bills": "bills"},
			want: []Tag{{"bills", 10}, {"tax", 9}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := &Record{Tags: tc.tags}
			r.ApplyReplacements(tc.repl)
			if !reflect.DeepEqual(r.Tags, tc.want) {
				t.Fatalf("tags = %v, want %v", r.Tags, tc.want)
			}
		})
	}
}

func TestUniqueTags(t *testing.T) {
	a := &Record{Tags: []Tag{{"x", 1}, {"y", 1}}}
	b := &Record{Tags: []Tag{{"y", 5}, {"z", 1}}}
	got := UniqueTags(a, nil, b)
	if !reflect.DeepEqual(got, []string{"x", "y", "z"}) {
		t.Fatalf("got %v", got)
	}
}
