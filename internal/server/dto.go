package server

import "testtracker/internal/engine"

// Request payloads. Every field is optional on the wire; the engine reports
// missing required ones with the service's field errors. Unknown fields are
// accepted and ignored, like the service does.

type AddProjectRequest struct {
	_                struct{} `json:"-" additionalProperties:"true"`
	Name             string   `json:"name,omitempty"`
	Announcement     string   `json:"announcement,omitempty"`
	ShowAnnouncement bool     `json:"show_announcement,omitempty"`
	SuiteMode        int      `json:"suite_mode,omitempty" enum:"1,2,3"`
}

func (r AddProjectRequest) options(actor int64) engine.ProjectOptions {
	return engine.ProjectOptions{
		Name:             r.Name,
		Announcement:     r.Announcement,
		ShowAnnouncement: r.ShowAnnouncement,
		SuiteMode:        r.SuiteMode,
		ActorID:          actor,
	}
}

type AddMilestoneRequest struct {
	_           struct{} `json:"-" additionalProperties:"true"`
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	DueOn       *int64   `json:"due_on,omitempty"`
	StartOn     *int64   `json:"start_on,omitempty"`
	ParentID    *int64   `json:"parent_id,omitempty"`
}

func (r AddMilestoneRequest) options(projectID, actor int64) engine.MilestoneOptions {
	return engine.MilestoneOptions{
		ProjectID:   projectID,
		ParentID:    r.ParentID,
		Name:        r.Name,
		Description: r.Description,
		DueOn:       r.DueOn,
		StartOn:     r.StartOn,
		ActorID:     actor,
	}
}

type AddSuiteRequest struct {
	_           struct{} `json:"-" additionalProperties:"true"`
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
}

type AddSectionRequest struct {
	_           struct{} `json:"-" additionalProperties:"true"`
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	SuiteID     int64    `json:"suite_id,omitempty"`
	ParentID    *int64   `json:"parent_id,omitempty"`
}

func (r AddSectionRequest) options(projectID, actor int64) engine.SectionOptions {
	return engine.SectionOptions{
		ProjectID:   projectID,
		SuiteID:     r.SuiteID,
		ParentID:    r.ParentID,
		Name:        r.Name,
		Description: r.Description,
		ActorID:     actor,
	}
}

type AddCaseRequest struct {
	_           struct{} `json:"-" additionalProperties:"true"`
	Title       string   `json:"title,omitempty"`
	TemplateID  int64    `json:"template_id,omitempty"`
	TypeID      int64    `json:"type_id,omitempty"`
	PriorityID  int64    `json:"priority_id,omitempty"`
	MilestoneID *int64   `json:"milestone_id,omitempty"`
	Estimate    string   `json:"estimate,omitempty"`
	Refs        string   `json:"refs,omitempty"`
}

func (r AddCaseRequest) options(sectionID, actor int64) engine.CaseOptions {
	return engine.CaseOptions{
		SectionID:   sectionID,
		Title:       r.Title,
		TemplateID:  r.TemplateID,
		TypeID:      r.TypeID,
		PriorityID:  r.PriorityID,
		MilestoneID: r.MilestoneID,
		Estimate:    r.Estimate,
		Refs:        r.Refs,
		ActorID:     actor,
	}
}

type AddRunRequest struct {
	_            struct{} `json:"-" additionalProperties:"true"`
	Name         string   `json:"name,omitempty"`
	Description  string   `json:"description,omitempty"`
	SuiteID      int64    `json:"suite_id,omitempty"`
	MilestoneID  *int64   `json:"milestone_id,omitempty"`
	AssignedToID *int64   `json:"assignedto_id,omitempty"`
	IncludeAll   *bool    `json:"include_all,omitempty"`
	CaseIDs      []int64  `json:"case_ids,omitempty"`
	Refs         string   `json:"refs,omitempty"`
}

func (r AddRunRequest) options(projectID, actor int64) engine.RunOptions {
	return engine.RunOptions{
		ProjectID:    projectID,
		SuiteID:      r.SuiteID,
		MilestoneID:  r.MilestoneID,
		AssignedToID: r.AssignedToID,
		Name:         r.Name,
		Description:  r.Description,
		IncludeAll:   r.IncludeAll,
		CaseIDs:      r.CaseIDs,
		Refs:         r.Refs,
		ActorID:      actor,
	}
}

type AddPlanRequest struct {
	_           struct{} `json:"-" additionalProperties:"true"`
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	MilestoneID *int64   `json:"milestone_id,omitempty"`
}

type AddResultRequest struct {
	_            struct{} `json:"-" additionalProperties:"true"`
	CaseID       int64    `json:"case_id,omitempty"`
	StatusID     int      `json:"status_id,omitempty"`
	Comment      string   `json:"comment,omitempty"`
	Version      string   `json:"version,omitempty"`
	Elapsed      string   `json:"elapsed,omitempty"`
	Defects      string   `json:"defects,omitempty"`
	AssignedToID *int64   `json:"assignedto_id,omitempty"`
}

func (r AddResultRequest) options() engine.ResultOptions {
	return engine.ResultOptions{
		CaseID:       r.CaseID,
		StatusID:     r.StatusID,
		Comment:      r.Comment,
		Version:      r.Version,
		Elapsed:      r.Elapsed,
		Defects:      r.Defects,
		AssignedToID: r.AssignedToID,
	}
}
