package actions

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// ParseResult is the outcome of scanning one model response.
type ParseResult struct {
	// Actions holds every well-formed action, in document order.
	Actions []Action
	// Errors holds one message per malformed block. Malformed blocks
	// never abort parsing of their siblings.
	Errors []string
	// FoundAttempt is true when at least one tagged block was present,
	// well-formed or not. False signals the model produced no
	// actionable output at all.
	FoundAttempt bool
}

var actionBlockRe = regexp.MustCompile(`(?s)<action\s+type="([^"]+)">(.*?)</action>`)

// fieldRes covers every field name the known action types use.
var fieldRes = func() map[string]*regexp.Regexp {
	res := make(map[string]*regexp.Regexp)
	for _, name := range []string{
		"agent_id", "query", "context_id",
		"content", "operation",
		"item", "index",
		"message", "summary",
	} {
		res[name] = regexp.MustCompile(`(?s)<` + name + `>(.*?)</` + name + `>`)
	}
	return res
}()

// Parser extracts actions from raw model output. Each tagged block is
// parsed independently.
type Parser struct {
	logger *zap.Logger
}

// NewParser creates a parser. A nil logger disables logging.
func NewParser(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{logger: logger.With(zap.String("component", "action_parser"))}
}

// Parse scans modelText for tagged action blocks. Field extraction is
// exact-match by field name; unknown action types are skipped with a
// warning rather than an error.
func (p *Parser) Parse(modelText string) *ParseResult {
	result := &ParseResult{}

	for _, match := range actionBlockRe.FindAllStringSubmatch(modelText, -1) {
		result.FoundAttempt = true
		actionType := match[1]
		body := strings.TrimSpace(match[2])

		action, err := p.parseBlock(actionType, body)
		if err != nil {
			msg := fmt.Sprintf("failed to parse %s action: %v", actionType, err)
			p.logger.Error("action parse failed",
				zap.String("type", actionType), zap.Error(err))
			result.Errors = append(result.Errors, msg)
			continue
		}
		if action != nil {
			result.Actions = append(result.Actions, action)
		}
	}
	return result
}

// parseBlock parses a single action body. A nil, nil return means the
// type was unknown and the block is skipped.
func (p *Parser) parseBlock(actionType, body string) (Action, error) {
	switch actionType {
	case "query_agent":
		agentID, err := requiredField(body, "agent_id")
		if err != nil {
			return nil, err
		}
		query, err := requiredField(body, "query")
		if err != nil {
			return nil, err
		}
		return QueryAgent{
			AgentID:   agentID,
			Query:     query,
			ContextID: optionalField(body, "context_id", ""),
		}, nil

	case "update_scratchpad":
		content, err := requiredField(body, "content")
		if err != nil {
			return nil, err
		}
		return UpdateScratchpad{
			Content:   content,
			Operation: optionalField(body, "operation", "append"),
		}, nil

	case "update_todo":
		item, err := requiredField(body, "item")
		if err != nil {
			return nil, err
		}
		action := UpdateTodo{
			Item:      item,
			Operation: optionalField(body, "operation", "add"),
		}
		if raw := optionalField(body, "index", ""); raw != "" {
			idx, err := strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid index %q: %w", raw, err)
			}
			action.Index = &idx
		}
		return action, nil

	case "finish_stage":
		message, err := requiredField(body, "message")
		if err != nil {
			return nil, err
		}
		summary, err := requiredField(body, "summary")
		if err != nil {
			return nil, err
		}
		return FinishStage{Message: message, Summary: summary}, nil

	default:
		p.logger.Warn("unknown action type", zap.String("type", actionType))
		return nil, nil
	}
}

func requiredField(body, name string) (string, error) {
	v := strings.TrimSpace(extractField(body, name))
	if v == "" {
		return "", fmt.Errorf("required tag %q not found or empty", name)
	}
	return v, nil
}

func optionalField(body, name, def string) string {
	v := strings.TrimSpace(extractField(body, name))
	if v == "" {
		return def
	}
	return v
}

func extractField(body, name string) string {
	re, ok := fieldRes[name]
	if !ok {
		return ""
	}
	m := re.FindStringSubmatch(body)
	if m == nil {
		return ""
	}
	return m[1]
}
