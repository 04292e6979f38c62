package trackersdk

import "fmt"

// SuiteMode controls how a project organizes its test cases.
type SuiteMode int

const (
	SuiteModeSingle             SuiteMode = 1
	SuiteModeSingleWithBaseline SuiteMode = 2
	SuiteModeMultiple           SuiteMode = 3
)

// Status is the outcome recorded on a result.
type Status int

const (
	StatusPassed   Status = 1
	StatusBlocked  Status = 2
	StatusUntested Status = 3
	StatusRetest   Status = 4
	StatusFailed   Status = 5
)

func (s Status) String() string {
	switch s {
	case StatusPassed:
		return "passed"
	case StatusBlocked:
		return "blocked"
	case StatusUntested:
		return "untested"
	case StatusRetest:
		return "retest"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ParseStatus maps a status name back to its value.
func ParseStatus(name string) (Status, error) {
	for _, s := range []Status{StatusPassed, StatusBlocked, StatusUntested, StatusRetest, StatusFailed} {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", name)
}

// Project is the root of the entity hierarchy.
type Project struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	Announcement     string    `json:"announcement,omitempty"`
	ShowAnnouncement bool      `json:"show_announcement"`
	SuiteMode        SuiteMode `json:"suite_mode"`
	IsCompleted      bool      `json:"is_completed"`
	URL              string    `json:"url,omitempty"`
}

type Milestone struct {
	ID          int64  `json:"id"`
	ProjectID   int64  `json:"project_id"`
	ParentID    *int64 `json:"parent_id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	DueOn       *int64 `json:"due_on,omitempty"`
	StartOn     *int64 `json:"start_on,omitempty"`
	IsCompleted bool   `json:"is_completed"`
}

type Suite struct {
	ID          int64  `json:"id"`
	ProjectID   int64  `json:"project_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type Section struct {
	ID          int64  `json:"id"`
	SuiteID     int64  `json:"suite_id"`
	ParentID    *int64 `json:"parent_id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Depth       int    `json:"depth"`
}

// Case is a test case; the service calls its name "title".
type Case struct {
	ID          int64  `json:"id"`
	SectionID   int64  `json:"section_id"`
	SuiteID     int64  `json:"suite_id"`
	Title       string `json:"title"`
	TemplateID  int64  `json:"template_id,omitempty"`
	TypeID      int64  `json:"type_id,omitempty"`
	PriorityID  int64  `json:"priority_id,omitempty"`
	MilestoneID *int64 `json:"milestone_id,omitempty"`
	Estimate    string `json:"estimate,omitempty"`
	Refs        string `json:"refs,omitempty"`
}

type CaseType struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default"`
}

type Run struct {
	ID           int64  `json:"id"`
	ProjectID    int64  `json:"project_id"`
	SuiteID      int64  `json:"suite_id,omitempty"`
	MilestoneID  *int64 `json:"milestone_id,omitempty"`
	AssignedToID *int64 `json:"assignedto_id,omitempty"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	IncludeAll   bool   `json:"include_all"`
	IsCompleted  bool   `json:"is_completed"`
	Refs         string `json:"refs,omitempty"`
}

type Plan struct {
	ID          int64  `json:"id"`
	ProjectID   int64  `json:"project_id"`
	MilestoneID *int64 `json:"milestone_id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type User struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	IsActive bool   `json:"is_active"`
}

// Result is a recorded outcome as returned by the service.
type Result struct {
	ID           int64  `json:"id"`
	RunID        int64  `json:"run_id,omitempty"`
	CaseID       int64  `json:"case_id,omitempty"`
	StatusID     Status `json:"status_id"`
	Comment      string `json:"comment,omitempty"`
	Version      string `json:"version,omitempty"`
	Elapsed      string `json:"elapsed,omitempty"`
	Defects      string `json:"defects,omitempty"`
	AssignedToID *int64 `json:"assignedto_id,omitempty"`
	CreatedOn    int64  `json:"created_on,omitempty"`
}

// ResultEntry is one element of a bulk add_results body.
type ResultEntry struct {
	CaseID       int64  `json:"case_id"`
	StatusID     Status `json:"status_id"`
	Comment      string `json:"comment,omitempty"`
	Version      string `json:"version,omitempty"`
	Elapsed      string `json:"elapsed,omitempty"`
	Defects      string `json:"defects,omitempty"`
	AssignedToID *int64 `json:"assignedto_id,omitempty"`
}
