package steps

import (
	"testing"

	"github.com/simon020286/go-autopilot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assignmentsResponse(enabled string) map[string]any {
	return map[string]any{
		"courses": []any{
			map[string]any{"id": 7, "assignments": []any{
				map[string]any{"id": 31, "cmid": 310, "name": "Essay 1", "configs": []any{
					map[string]any{"plugin": "onlinetext", "subtype": "assignsubmission", "name": "enabled", "value": enabled},
				}},
				map[string]any{"id": 32, "cmid": 320, "name": "Essay 2", "configs": []any{}},
			}},
		},
	}
}

func submissionsResponse() map[string]any {
	return map[string]any{
		"assignments": []any{
			map[string]any{"assignmentid": 31, "submissions": []any{
				map[string]any{
					"id": 1, "userid": 101, "attemptnumber": 0, "status": "submitted", "gradingstatus": "notgraded",
					"plugins": []any{
						map[string]any{"type": "onlinetext", "editorfields": []any{
							map[string]any{"name": "onlinetext", "text": "<h1>Title</h1><p>Hello <b>world</b></p><ul><li>one</li></ul>", "format": 1},
						}},
						map[string]any{"type": "file", "fileareas": []any{
							map[string]any{"area": "submission_files", "files": []any{
								map[string]any{"filename": "essay.pdf", "fileurl": "/pluginfile.php/5/essay.pdf"},
							}},
						}},
						map[string]any{"type": "comments", "editorfields": []any{}},
					},
				},
				map[string]any{
					"id": 2, "userid": 102, "attemptnumber": 1, "status": "submitted", "gradingstatus": "graded",
					"plugins": []any{
						map[string]any{"type": "onlinetext", "editorfields": []any{
							map[string]any{"name": "onlinetext", "text": "plain answer", "format": 2},
						}},
					},
				},
			}},
		},
		"warnings": []any{},
	}
}

func courseShared(t *testing.T) *models.Context {
	return sharedWith(t, map[string]map[string]any{"course": {"id": 7}})
}

func TestRawText(t *testing.T) {
	assert.Equal(t, "Title\n\nHello world\n\none", rawText("<h1>Title</h1><p>Hello <b>world</b></p><ul><li>one</li></ul>"))
	assert.Equal(t, "", rawText("   "))
	assert.Equal(t, "", rawText("<div>no blocks</div>"))
}

func TestAssignmentSubmissionStep(t *testing.T) {
	stub := newMoodleStub(t, map[string]any{
		opGetAssignments: assignmentsResponse("1"),
		opGetSubmissions: submissionsResponse(),
	})
	step := newStep(t, models.StepConfig{
		Type:    "Assignment::Submission",
		ID:      "submissions",
		Context: map[string]string{"course": "course"},
		Params:  map[string]any{"name": "Essay 1"},
	})

	require.NoError(t, execute(t, step, stub.session(t), courseShared(t)))

	out := step.Output()
	assert.EqualValues(t, 31, out["assignment"])
	subs := out["submissions"].([]any)
	require.Len(t, subs, 2)

	first := subs[0].(map[string]any)
	assert.NotContains(t, first, "plugins")
	data := first["data"].(map[string]any)
	assert.Equal(t, "Title\n\nHello world\n\none", data["rawtext"])
	assert.Len(t, data["files"], 1)

	second := subs[1].(map[string]any)["data"].(map[string]any)
	assert.Equal(t, "plain answer", second["rawtext"])
	assert.NotContains(t, second, "files")

	assert.Equal(t, "7", stub.calls(opGetAssignments)[0]["courseids[0]"])
	req := stub.calls(opGetSubmissions)[0]
	assert.Equal(t, "31", req["assignmentids[0]"])
	assert.Equal(t, "submitted", req["status"])
}

func TestAssignmentSubmissionStep_Errors(t *testing.T) {
	tests := []struct {
		name       string
		assignment string
		enabled    string
		code       string
	}{
		{"not found", "Essay 9", "1", models.CodeNotFound},
		{"submissions disabled", "Essay 1", "0", models.CodeNoSubmit},
		{"no submission config", "Essay 2", "1", models.CodeNoSubmit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := newMoodleStub(t, map[string]any{
				opGetAssignments: assignmentsResponse(tt.enabled),
				opGetSubmissions: submissionsResponse(),
			})
			step := newStep(t, models.StepConfig{
				Type:    "Assignment::Submission",
				Context: map[string]string{"course": "course"},
				Params:  map[string]any{"name": tt.assignment},
			})
			err := execute(t, step, stub.session(t), courseShared(t))
			var de *models.DomainError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.code, de.Code)
			assert.Empty(t, stub.calls(opGetSubmissions))
		})
	}
}

func TestAssignmentSubmissionStep_WarningsWithoutAssignments(t *testing.T) {
	stub := newMoodleStub(t, map[string]any{
		opGetAssignments: assignmentsResponse("1"),
		opGetSubmissions: map[string]any{
			"assignments": []any{},
			"warnings":    []any{map[string]any{"item": "assignment", "message": "No access rights in module context"}},
		},
	})
	step := newStep(t, models.StepConfig{
		Type:    "Assignment::Submission",
		Context: map[string]string{"course": "course"},
		Params:  map[string]any{"name": "Essay 1"},
	})
	err := execute(t, step, stub.session(t), courseShared(t))
	var de *models.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, models.CodeNotFound, de.Code)
	assert.Contains(t, de.Message, "No access rights")
}

func TestAssignmentSubmissionStep_MissingEndpoint(t *testing.T) {
	stub := newMoodleStub(t, map[string]any{opGetAssignments: assignmentsResponse("1")})
	step := newStep(t, models.StepConfig{
		Type:    "Assignment::Submission",
		Context: map[string]string{"course": "course"},
		Params:  map[string]any{"name": "Essay 1"},
	})
	err := execute(t, step, stub.session(t), courseShared(t))
	var ce *models.CapabilityError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, opGetSubmissions, ce.Operation)
	assert.Empty(t, stub.calls(opGetAssignments))
}

func TestAssignmentFeedbackStep(t *testing.T) {
	stub := newMoodleStub(t, map[string]any{opSaveGrade: nil})
	shared := sharedWith(t, map[string]map[string]any{
		"grader": {"grades": []any{
			map[string]any{"assignmentid": 31, "userid": 101, "grade": 5, "id": 1, "status": "submitted", "gradingstatus": "notgraded", "rawtext": "x"},
			map[string]any{"assignmentid": 31, "userid": 102, "grade": 3.5},
		}},
	})
	step := newStep(t, models.StepConfig{
		Type:    "Assignment::Feedback",
		Context: map[string]string{"grader": "grader"},
		Params:  map[string]any{"concurrency": 1},
	})

	require.NoError(t, execute(t, step, stub.session(t), shared))
	assert.Equal(t, 2, step.Output()["saved"])

	calls := stub.calls(opSaveGrade)
	require.Len(t, calls, 2)
	byUser := map[string]map[string]string{}
	for _, c := range calls {
		byUser[c["userid"]] = c
	}
	assert.Equal(t, map[string]string{
		"assignmentid":  "31",
		"userid":        "101",
		"grade":         "5",
		"workflowstate": "released",
	}, byUser["101"])
	assert.Equal(t, "3.5", byUser["102"]["grade"])
	assert.Equal(t, []string{"POST", "POST"}, stub.methods[opSaveGrade])
}

func TestAssignmentFeedbackStep_DoesNotMutateGraderOutput(t *testing.T) {
	stub := newMoodleStub(t, map[string]any{opSaveGrade: nil})
	shared := sharedWith(t, map[string]map[string]any{
		"grader": {"grades": []any{map[string]any{"userid": 101, "id": 1}}},
	})
	step := newStep(t, models.StepConfig{Type: "Assignment::Feedback", Context: map[string]string{"grader": "grader"}})
	require.NoError(t, execute(t, step, stub.session(t), shared))

	grader, _ := shared.Lookup("grader")
	entry := grader["grades"].([]any)[0].(map[string]any)
	assert.Contains(t, entry, "id")
	assert.NotContains(t, entry, "workflowstate")
}

func TestAssignmentFeedbackStep_RemoteFailure(t *testing.T) {
	stub := newMoodleStub(t, map[string]any{
		opSaveGrade: map[string]any{"exception": "moodle_exception", "errorcode": "nopermission", "message": "no permission"},
	})
	shared := sharedWith(t, map[string]map[string]any{
		"grader": {"grades": []any{map[string]any{"userid": 101, "grade": 1}}},
	})
	step := newStep(t, models.StepConfig{Type: "Assignment::Feedback", Context: map[string]string{"grader": "grader"}})

	err := execute(t, step, stub.session(t), shared)
	var de *models.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "nopermission", de.Code)
	assert.NotContains(t, step.Output(), "saved")
}
