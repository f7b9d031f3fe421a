package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/simon020286/go-autopilot/logging"
	"github.com/simon020286/go-autopilot/models"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
)

const (
	opGetAssignments = "mod_assign_get_assignments"
	opGetSubmissions = "mod_assign_get_submissions"
	opSaveGrade      = "mod_assign_save_grade"

	formatHTML     = "1"
	formatMarkdown = 4

	defaultSaveConcurrency = 4
)

// findAssignment returns the single assignment of the course named name.
func findAssignment(ctx context.Context, session models.Session, courseID any, name string) (map[string]any, error) {
	res, err := session.Invoke(ctx, "mod_assign", "get", "assignments", map[string]any{
		"courseids[0]": courseID,
	})
	if err != nil {
		return nil, err
	}

	var matches []map[string]any
	for _, c := range asList(asMap(res)["courses"]) {
		for _, a := range asList(asMap(c)["assignments"]) {
			assignment := asMap(a)
			if assignment != nil && assignment["name"] == name {
				matches = append(matches, assignment)
			}
		}
	}

	switch len(matches) {
	case 0:
		return nil, models.ErrDomain(opGetAssignments, models.CodeNotFound, fmt.Sprintf("assignment %q not found in course %s", name, asString(courseID)))
	case 1:
		return matches[0], nil
	default:
		return nil, models.ErrDomain(opGetAssignments, models.CodeAmbiguous, fmt.Sprintf("%d assignments named %q in course %s", len(matches), name, asString(courseID)))
	}
}

// checkSubmissionsEnabled fails unless the assignment accepts submissions.
func checkSubmissionsEnabled(assignment map[string]any) error {
	for _, c := range asList(assignment["configs"]) {
		cfg := asMap(c)
		if cfg["subtype"] == "assignsubmission" && cfg["name"] == "enabled" && asString(cfg["value"]) == "1" {
			return nil
		}
	}
	return models.ErrDomain(opGetAssignments, models.CodeNoSubmit,
		fmt.Sprintf("assignment %q does not accept submissions", asString(assignment["name"])))
}

// fetchSubmissions returns the submitted attempts of an assignment with
// plugin data flattened into a "data" map: files for file areas and
// text, format and rawtext for online text. Comment plugins are dropped.
func fetchSubmissions(ctx context.Context, session models.Session, assignmentID any) ([]any, error) {
	res, err := session.Invoke(ctx, "mod_assign", "get", "submissions", map[string]any{
		"status":           "submitted",
		"assignmentids[0]": assignmentID,
	})
	if err != nil {
		return nil, err
	}

	body := asMap(res)
	assignments := asList(body["assignments"])
	if len(assignments) == 0 {
		if len(asList(body["warnings"])) > 0 {
			return nil, models.ErrDomain(opGetSubmissions, models.CodeNotFound,
				fmt.Sprintf("no submissions for assignment %s: %s", asString(assignmentID), warningText(body["warnings"])))
		}
		return []any{}, nil
	}

	submissions := make([]any, 0)
	for _, a := range assignments {
		for _, raw := range asList(asMap(a)["submissions"]) {
			sub := asMap(raw)
			if sub == nil {
				continue
			}
			sub["data"] = flattenPlugins(sub["plugins"])
			delete(sub, "plugins")
			submissions = append(submissions, sub)
		}
	}
	return submissions, nil
}

func flattenPlugins(plugins any) map[string]any {
	data := make(map[string]any)
	for _, p := range asList(plugins) {
		plugin := asMap(p)
		if plugin == nil || plugin["type"] == "comments" {
			continue
		}
		if areas := asList(plugin["fileareas"]); len(areas) > 0 {
			files := asList(asMap(areas[0])["files"])
			if files == nil {
				files = []any{}
			}
			data["files"] = files
		}
		if fields := asList(plugin["editorfields"]); len(fields) > 0 {
			field := asMap(fields[0])
			text := asString(field["text"])
			data["text"] = text
			data["format"] = field["format"]
			data["rawtext"] = text
			if asString(field["format"]) == formatHTML {
				data["rawtext"] = rawText(text)
			}
		}
	}
	return data
}

func warningText(warnings any) string {
	var parts []string
	for _, w := range asList(warnings) {
		if msg := asString(asMap(w)["message"]); msg != "" {
			parts = append(parts, msg)
		}
	}
	return strings.Join(parts, "; ")
}

var rawTextTags = map[string]bool{
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true,
	"p": true, "li": true,
}

// rawText extracts the text of headings, paragraphs and list items from
// an HTML fragment, one block per element separated by blank lines.
func rawText(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}

	var blocks []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && rawTextTags[n.Data] {
			if text := strings.TrimSpace(nodeText(n)); text != "" {
				blocks = append(blocks, text)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.Join(blocks, "\n\n")
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var collect func(n *html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return sb.String()
}

// saveGrades submits every grade concurrently, at most limit at a time.
// Responses keep the order of grades. The first failure cancels the
// remaining submissions.
func saveGrades(ctx context.Context, session models.Session, grades []map[string]any, limit int) ([]any, error) {
	logger := logging.FromContext(ctx)
	responses := make([]any, len(grades))

	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, grade := range grades {
		g.Go(func() error {
			logger.Debug("saving grade", zap.Any("userid", grade["userid"]))
			res, err := session.Invoke(gctx, "mod_assign", "save", "grade", grade)
			if err != nil {
				return fmt.Errorf("save grade for user %s: %w", asString(grade["userid"]), err)
			}
			responses[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	unexpected := 0
	for _, res := range responses {
		if res != nil {
			unexpected++
		}
	}
	if unexpected > 0 {
		logger.Warn("some grade submissions returned a non-empty response", zap.Int("count", unexpected))
	}
	return responses, nil
}
