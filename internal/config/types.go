package config

// File is one parsed configuration source.
//
// Example (YAML):
//
//	global:
//	  slack_webhook_url: ${SLACK_WEBHOOK_URL}
//	  agent_type: financial
//	tasks:
//	  - id: daily_news
//	    name: Daily market summary
//	    query: summarize yesterday's US equity news
//	    schedule: "0 2 * * *"
//	    freshness: day
//	    count: 50
type File struct {
	// Path is the file the source was read from.
	Path   string
	Global Values
	Tasks  []TaskDefinition
}

// TaskDefinition is one entry of the tasks list.
//
// The well-known keys are lifted into fields; Fields keeps the complete raw
// mapping (including the well-known keys) so type-specific settings reach the
// agent constructor untouched. Nothing mutates a TaskDefinition after load.
type TaskDefinition struct {
	ID       string
	Name     string
	Type     string
	Query    string
	Schedule string
	Enabled  bool

	// Source is the path of the file this task was loaded from.
	Source string

	Fields Values
}

// DisplayName returns Name, falling back to ID.
func (t TaskDefinition) DisplayName() string {
	if t.Name != "" {
		return t.Name
	}
	return t.ID
}

func newTaskDefinition(source string, raw Values) TaskDefinition {
	return TaskDefinition{
		ID:       raw.String("id"),
		Name:     raw.String("name"),
		Type:     raw.String("type"),
		Query:    raw.String("query"),
		Schedule: raw.String("schedule"),
		Enabled:  raw.Bool("enabled", true),
		Source:   source,
		Fields:   raw,
	}
}
