package course

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLessonRefAcceptsAllForms(t *testing.T) {
	cases := []struct {
		name string
		json string
		want string
	}{
		{"bare string", `"abc-123"`, "abc-123"},
		{"object with id", `{"id": "abc-123"}`, "abc-123"},
		{"object with lesson_id", `{"lesson_id": "abc-123"}`, "abc-123"},
		{"id wins over lesson_id", `{"id": "abc-123", "lesson_id": "other"}`, "abc-123"},
		{"empty object", `{}`, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var ref LessonRef
			require.NoError(t, json.Unmarshal([]byte(tc.json), &ref))
			assert.Equal(t, tc.want, ref.ID)
		})
	}
}

func TestLessonRefRejectsGarbage(t *testing.T) {
	var ref LessonRef
	assert.Error(t, json.Unmarshal([]byte(`42`), &ref))
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &ref))
}

func TestLessonRefMarshalsCanonicalString(t *testing.T) {
	out, err := json.Marshal(LessonRef{ID: "abc-123"})
	require.NoError(t, err)
	assert.Equal(t, `"abc-123"`, string(out))
}

func TestSectionRequestLessonRefsInSections(t *testing.T) {
	payload := `{
		"title": "Mixed Payload",
		"sections": [
			{"title": "Week 1", "lessons": ["l1", {"id": "l2"}, {"lesson_id": "l3"}]},
			{"title": "Week 2", "exercises": [{"id": "e1"}]}
		]
	}`

	var req CourseRequest
	require.NoError(t, json.Unmarshal([]byte(payload), &req))

	input := req.toInput()
	require.Len(t, input.Sections, 2)
	assert.Equal(t, []string{"l1", "l2", "l3"}, input.Sections[0].Lessons)
	assert.Equal(t, []string{"e1"}, input.Sections[1].Exercises)
}

func TestToInputDropsEmptyRefs(t *testing.T) {
	req := CourseRequest{
		Title: "Sparse",
		Sections: []SectionRequest{
			{Title: "Week 1", Lessons: []LessonRef{{ID: "l1"}, {ID: ""}, {ID: "l2"}}},
		},
	}
	input := req.toInput()
	assert.Equal(t, []string{"l1", "l2"}, input.Sections[0].Lessons)
}
