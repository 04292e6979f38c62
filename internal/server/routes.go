package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"testtracker/internal/domain"
	"testtracker/internal/engine"
	"testtracker/internal/repo"
)

type handlers struct {
	e        engine.Engine
	basePath string
	pageSize int
}

type output[T any] struct {
	Body T `json:"body"`
}

func reply[T any](v T) *output[T] { return &output[T]{Body: v} }

// rawOutput carries a pre-encoded JSON body, used where the service answers null.
type rawOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

func rawJSON(v any) (*rawOutput, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, handleError(err)
	}
	return &rawOutput{ContentType: "application/json", Body: data}, nil
}

type PageParams struct {
	Limit  int `query:"limit"`
	Offset int `query:"offset"`
}

func (h handlers) page(p PageParams) (offset, limit int) {
	limit = h.pageSize
	if p.Limit > 0 && p.Limit < limit {
		limit = p.Limit
	}
	return p.Offset, limit
}

var (
	readErrors  = []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusTooManyRequests}
	writeErrors = []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusTooManyRequests, http.StatusInternalServerError}
)

func get(id, path, summary string) huma.Operation {
	return huma.Operation{OperationID: id, Method: http.MethodGet, Path: path, Summary: summary, Errors: readErrors}
}

func post(id, path, summary string) huma.Operation {
	return huma.Operation{OperationID: id, Method: http.MethodPost, Path: path, Summary: summary, DefaultStatus: http.StatusOK, Errors: writeErrors}
}

func (h handlers) registerProjects(api huma.API) {
	huma.Register(api, get("get-projects", "/get_projects", "List projects"), func(ctx context.Context, input *struct {
		PageParams
	}) (*output[map[string]any], error) {
		items, err := h.e.Repo.ListProjects(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		offset, limit := h.page(input.PageParams)
		return reply(page(ctx, h.basePath, "projects", items, offset, limit)), nil
	})

	// Unknown projects answer 200 with a JSON null body.
	huma.Register(api, get("get-project", "/get_project/{project_id}", "Get project"), func(ctx context.Context, input *struct {
		ProjectID int64 `path:"project_id"`
	}) (*rawOutput, error) {
		p, err := h.e.Repo.GetProject(ctx, nil, input.ProjectID)
		if errors.Is(err, repo.ErrNotFound) {
			return rawJSON(nil)
		}
		if err != nil {
			return nil, handleError(err)
		}
		return rawJSON(p)
	})

	huma.Register(api, post("add-project", "/add_project", "Create project"), func(ctx context.Context, input *struct {
		Body AddProjectRequest `json:"body"`
	}) (*output[domain.Project], error) {
		p, err := h.e.AddProject(ctx, input.Body.options(actorID(ctx)))
		if err != nil {
			return nil, handleError(err)
		}
		return reply(p), nil
	})

	h.registerDelete(api, "project")
}

func (h handlers) registerDelete(api huma.API, kind string) {
	huma.Register(api, post("delete-"+kind, "/delete_"+kind+"/{id}", "Delete "+kind), func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct{}, error) {
		if err := h.e.Delete(ctx, kind, input.ID, actorID(ctx)); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func (h handlers) registerMilestones(api huma.API) {
	huma.Register(api, get("get-milestones", "/get_milestones/{project_id}", "List milestones"), func(ctx context.Context, input *struct {
		ProjectID int64 `path:"project_id"`
		PageParams
	}) (*output[map[string]any], error) {
		if err := h.requireProject(ctx, input.ProjectID); err != nil {
			return nil, err
		}
		items, err := h.e.Repo.ListMilestones(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		offset, limit := h.page(input.PageParams)
		return reply(page(ctx, h.basePath, "milestones", items, offset, limit)), nil
	})

	huma.Register(api, post("add-milestone", "/add_milestone/{project_id}", "Create milestone"), func(ctx context.Context, input *struct {
		ProjectID int64               `path:"project_id"`
		Body      AddMilestoneRequest `json:"body"`
	}) (*output[domain.Milestone], error) {
		m, err := h.e.AddMilestone(ctx, input.Body.options(input.ProjectID, actorID(ctx)))
		if err != nil {
			return nil, handleError(err)
		}
		return reply(m), nil
	})

	h.registerDelete(api, "milestone")
}

func (h handlers) registerSuites(api huma.API) {
	huma.Register(api, get("get-suites", "/get_suites/{project_id}", "List suites"), func(ctx context.Context, input *struct {
		ProjectID int64 `path:"project_id"`
	}) (*output[[]domain.Suite], error) {
		if err := h.requireProject(ctx, input.ProjectID); err != nil {
			return nil, err
		}
		items, err := h.e.Repo.ListSuites(ctx, nil, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(items), nil
	})

	huma.Register(api, post("add-suite", "/add_suite/{project_id}", "Create suite"), func(ctx context.Context, input *struct {
		ProjectID int64           `path:"project_id"`
		Body      AddSuiteRequest `json:"body"`
	}) (*output[domain.Suite], error) {
		s, err := h.e.AddSuite(ctx, engine.SuiteOptions{
			ProjectID:   input.ProjectID,
			Name:        input.Body.Name,
			Description: input.Body.Description,
			ActorID:     actorID(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(s), nil
	})

	h.registerDelete(api, "suite")
}

func (h handlers) registerSections(api huma.API) {
	huma.Register(api, get("get-sections", "/get_sections/{project_id}", "List sections"), func(ctx context.Context, input *struct {
		ProjectID int64 `path:"project_id"`
		SuiteID   int64 `query:"suite_id"`
		PageParams
	}) (*output[map[string]any], error) {
		if err := h.requireProject(ctx, input.ProjectID); err != nil {
			return nil, err
		}
		items, err := h.e.Repo.ListSections(ctx, input.ProjectID, input.SuiteID)
		if err != nil {
			return nil, handleError(err)
		}
		offset, limit := h.page(input.PageParams)
		return reply(page(ctx, h.basePath, "sections", items, offset, limit)), nil
	})

	huma.Register(api, post("add-section", "/add_section/{project_id}", "Create section"), func(ctx context.Context, input *struct {
		ProjectID int64             `path:"project_id"`
		Body      AddSectionRequest `json:"body"`
	}) (*output[domain.Section], error) {
		s, err := h.e.AddSection(ctx, input.Body.options(input.ProjectID, actorID(ctx)))
		if err != nil {
			return nil, handleError(err)
		}
		return reply(s), nil
	})

	h.registerDelete(api, "section")
}

func (h handlers) registerCases(api huma.API) {
	huma.Register(api, get("get-cases", "/get_cases/{project_id}", "List cases"), func(ctx context.Context, input *struct {
		ProjectID int64 `path:"project_id"`
		SuiteID   int64 `query:"suite_id"`
		SectionID int64 `query:"section_id"`
		PageParams
	}) (*output[map[string]any], error) {
		if err := h.requireProject(ctx, input.ProjectID); err != nil {
			return nil, err
		}
		items, err := h.e.Repo.ListCases(ctx, nil, repo.CaseFilters{ProjectID: input.ProjectID, SuiteID: input.SuiteID, SectionID: input.SectionID})
		if err != nil {
			return nil, handleError(err)
		}
		offset, limit := h.page(input.PageParams)
		return reply(page(ctx, h.basePath, "cases", items, offset, limit)), nil
	})

	huma.Register(api, post("add-case", "/add_case/{section_id}", "Create case"), func(ctx context.Context, input *struct {
		SectionID int64          `path:"section_id"`
		Body      AddCaseRequest `json:"body"`
	}) (*output[domain.Case], error) {
		c, err := h.e.AddCase(ctx, input.Body.options(input.SectionID, actorID(ctx)))
		if err != nil {
			return nil, handleError(err)
		}
		return reply(c), nil
	})

	huma.Register(api, get("get-case-types", "/get_case_types", "List case types"), func(ctx context.Context, _ *struct{}) (*output[[]domain.CaseType], error) {
		items, err := h.e.Repo.ListCaseTypes(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(items), nil
	})

	h.registerDelete(api, "case")
}

func (h handlers) registerRuns(api huma.API) {
	huma.Register(api, get("get-runs", "/get_runs/{project_id}", "List runs"), func(ctx context.Context, input *struct {
		ProjectID int64 `path:"project_id"`
		PageParams
	}) (*output[map[string]any], error) {
		if err := h.requireProject(ctx, input.ProjectID); err != nil {
			return nil, err
		}
		items, err := h.e.Repo.ListRuns(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		offset, limit := h.page(input.PageParams)
		return reply(page(ctx, h.basePath, "runs", items, offset, limit)), nil
	})

	huma.Register(api, post("add-run", "/add_run/{project_id}", "Create run"), func(ctx context.Context, input *struct {
		ProjectID int64         `path:"project_id"`
		Body      AddRunRequest `json:"body"`
	}) (*output[domain.Run], error) {
		r, err := h.e.AddRun(ctx, input.Body.options(input.ProjectID, actorID(ctx)))
		if err != nil {
			return nil, handleError(err)
		}
		return reply(r), nil
	})

	huma.Register(api, post("close-run", "/close_run/{run_id}", "Close run"), func(ctx context.Context, input *struct {
		RunID int64 `path:"run_id"`
	}) (*output[domain.Run], error) {
		r, err := h.e.CloseRun(ctx, input.RunID, actorID(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return reply(r), nil
	})

	h.registerDelete(api, "run")
}

func (h handlers) registerPlans(api huma.API) {
	huma.Register(api, get("get-plans", "/get_plans/{project_id}", "List plans"), func(ctx context.Context, input *struct {
		ProjectID int64 `path:"project_id"`
		PageParams
	}) (*output[map[string]any], error) {
		if err := h.requireProject(ctx, input.ProjectID); err != nil {
			return nil, err
		}
		items, err := h.e.Repo.ListPlans(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		offset, limit := h.page(input.PageParams)
		return reply(page(ctx, h.basePath, "plans", items, offset, limit)), nil
	})

	huma.Register(api, post("add-plan", "/add_plan/{project_id}", "Create plan"), func(ctx context.Context, input *struct {
		ProjectID int64          `path:"project_id"`
		Body      AddPlanRequest `json:"body"`
	}) (*output[domain.Plan], error) {
		p, err := h.e.AddPlan(ctx, engine.PlanOptions{
			ProjectID:   input.ProjectID,
			MilestoneID: input.Body.MilestoneID,
			Name:        input.Body.Name,
			Description: input.Body.Description,
			ActorID:     actorID(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(p), nil
	})

	h.registerDelete(api, "plan")
}

func (h handlers) registerUsers(api huma.API) {
	huma.Register(api, get("get-users", "/get_users", "List users"), func(ctx context.Context, input *struct {
		PageParams
	}) (*output[map[string]any], error) {
		items, err := h.e.Repo.ListUsers(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		offset, limit := h.page(input.PageParams)
		return reply(page(ctx, h.basePath, "users", items, offset, limit)), nil
	})

	// Unknown addresses answer 200 with a JSON null body.
	huma.Register(api, get("get-user-by-email", "/get_user_by_email", "Find user by email"), func(ctx context.Context, input *struct {
		Email string `query:"email"`
	}) (*rawOutput, error) {
		if input.Email == "" {
			return nil, handleError(engine.FieldError{Field: "email", Msg: "is a required field."})
		}
		u, err := h.e.Repo.GetUserByEmail(ctx, input.Email)
		if errors.Is(err, repo.ErrNotFound) {
			return rawJSON(nil)
		}
		if err != nil {
			return nil, handleError(err)
		}
		return rawJSON(u)
	})
}

func (h handlers) registerResults(api huma.API) {
	huma.Register(api, post("add-results", "/add_results/{run_id}", "Add results in bulk"), func(ctx context.Context, input *struct {
		RunID int64              `path:"run_id"`
		Body  []AddResultRequest `json:"body"`
	}) (*output[[]domain.Result], error) {
		entries := make([]engine.ResultOptions, len(input.Body))
		for i, r := range input.Body {
			entries[i] = r.options()
		}
		results, err := h.e.AddResults(ctx, input.RunID, actorID(ctx), entries)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(results), nil
	})

	huma.Register(api, post("add-result-for-case", "/add_result_for_case/{run_id}/{case_id}", "Add result for case"), func(ctx context.Context, input *struct {
		RunID  int64            `path:"run_id"`
		CaseID int64            `path:"case_id"`
		Body   AddResultRequest `json:"body"`
	}) (*output[domain.Result], error) {
		entry := input.Body.options()
		entry.CaseID = input.CaseID
		results, err := h.e.AddResults(ctx, input.RunID, actorID(ctx), []engine.ResultOptions{entry})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(results[0]), nil
	})

	huma.Register(api, get("get-results-for-case", "/get_results_for_case/{run_id}/{case_id}", "List results for case"), func(ctx context.Context, input *struct {
		RunID  int64 `path:"run_id"`
		CaseID int64 `path:"case_id"`
		PageParams
	}) (*output[map[string]any], error) {
		if _, err := h.e.Repo.GetRun(ctx, nil, input.RunID); err != nil {
			return nil, handleError(invalidRef(err, "run_id", "is not a valid test run."))
		}
		items, err := h.e.Repo.ListResultsForCase(ctx, input.RunID, input.CaseID)
		if err != nil {
			return nil, handleError(err)
		}
		offset, limit := h.page(input.PageParams)
		return reply(page(ctx, h.basePath, "results", items, offset, limit)), nil
	})
}

func (h handlers) requireProject(ctx context.Context, id int64) error {
	if _, err := h.e.Repo.GetProject(ctx, nil, id); err != nil {
		return handleError(invalidRef(err, "project_id", "is not a valid or accessible project."))
	}
	return nil
}

func invalidRef(err error, field, msg string) error {
	if errors.Is(err, repo.ErrNotFound) {
		return engine.FieldError{Field: field, Msg: msg}
	}
	return err
}
