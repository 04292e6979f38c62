package domain

type Project struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	Announcement     string `json:"announcement,omitempty"`
	ShowAnnouncement bool   `json:"show_announcement"`
	SuiteMode        int    `json:"suite_mode" enum:"1,2,3"`
	IsCompleted      bool   `json:"is_completed"`
	CreatedOn        int64  `json:"created_on"`
	URL              string `json:"url,omitempty"`
}

// SingleSuite reports whether cases live in one implicit suite.
func (p Project) SingleSuite() bool { return p.SuiteMode != SuiteModeMultiple }

const (
	SuiteModeSingle             = 1
	SuiteModeSingleWithBaseline = 2
	SuiteModeMultiple           = 3
)

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
	IsMaster    bool   `json:"is_master"`
}

type Section struct {
	ID          int64  `json:"id"`
	SuiteID     int64  `json:"suite_id"`
	ParentID    *int64 `json:"parent_id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Depth       int    `json:"depth"`
}

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
	CreatedOn   int64  `json:"created_on"`
}

type CaseType struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default"`
}

type Run struct {
	ID           int64   `json:"id"`
	ProjectID    int64   `json:"project_id"`
	SuiteID      int64   `json:"suite_id,omitempty"`
	MilestoneID  *int64  `json:"milestone_id,omitempty"`
	AssignedToID *int64  `json:"assignedto_id,omitempty"`
	Name         string  `json:"name"`
	Description  string  `json:"description,omitempty"`
	IncludeAll   bool    `json:"include_all"`
	CaseIDs      []int64 `json:"case_ids,omitempty"`
	IsCompleted  bool    `json:"is_completed"`
	CompletedOn  *int64  `json:"completed_on,omitempty"`
	Refs         string  `json:"refs,omitempty"`
	CreatedOn    int64   `json:"created_on"`
}

type Plan struct {
	ID          int64  `json:"id"`
	ProjectID   int64  `json:"project_id"`
	MilestoneID *int64 `json:"milestone_id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedOn   int64  `json:"created_on"`
}

// Result statuses accepted by the service. Untested is a run's initial
// state and is never recorded.
const (
	StatusPassed   = 1
	StatusBlocked  = 2
	StatusUntested = 3
	StatusRetest   = 4
	StatusFailed   = 5
)

type Result struct {
	ID           int64  `json:"id"`
	RunID        int64  `json:"run_id"`
	CaseID       int64  `json:"case_id"`
	StatusID     int    `json:"status_id"`
	Comment      string `json:"comment,omitempty"`
	Version      string `json:"version,omitempty"`
	Elapsed      string `json:"elapsed,omitempty"`
	Defects      string `json:"defects,omitempty"`
	AssignedToID *int64 `json:"assignedto_id,omitempty"`
	CreatedBy    int64  `json:"created_by"`
	CreatedOn    int64  `json:"created_on"`
}

type User struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	IsActive bool   `json:"is_active"`
	IsAdmin  bool   `json:"-"`
}

// Credential is a hashed secret a user may authenticate with: the account
// password or one of its API keys.
type Credential struct {
	ID         int64
	UserID     int64
	Kind       string
	Name       string
	SecretHash string
	CreatedAt  string
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	ProjectID  *int64 `json:"project_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   *int64 `json:"entity_id,omitempty"`
	ActorID    int64  `json:"actor_id"`
	Payload    string `json:"payload"`
}
