package resolve

import (
	"context"
)

// Path names a test case through its hierarchy. An ID at any level
// short-circuits the name lookup for that level.
type Path struct {
	ProjectID int64
	Project   string
	SuiteID   int64
	Suite     string
	SectionID int64
	Section   string
	CaseID    int64
	Case      string
}

// Flags selects, per level, whether a missing name is an error.
type Flags struct {
	Project bool
	Suite   bool
	Section bool
	Case    bool
}

// Strict fails on any missing level.
var Strict = Flags{Project: true, Suite: true, Section: true, Case: true}

// IDs is the outcome of ResolvePath. Levels below one that was not found
// stay at NoID.
type IDs struct {
	ProjectID int64
	SuiteID   int64
	SectionID int64
	CaseID    int64
}

// HasCase reports whether the path resolved down to a test case.
func (ids IDs) HasCase() bool { return ids.CaseID != NoID }

// ResolvePath resolves project, suite, section and case in order. When no
// suite is given and the project runs in single-suite mode, its only suite
// is used.
func (r *Resolver) ResolvePath(ctx context.Context, p Path, f Flags) (IDs, error) {
	var ids IDs
	var err error

	ids.ProjectID = p.ProjectID
	if ids.ProjectID == NoID && p.Project != "" {
		if ids.ProjectID, err = r.ResolveProject(ctx, p.Project, f.Project); err != nil {
			return ids, err
		}
	}
	if ids.ProjectID == NoID {
		ids.CaseID = p.CaseID
		return ids, nil
	}
	if p.CaseID != NoID && p.Suite == "" && p.Section == "" {
		ids.SuiteID, ids.SectionID, ids.CaseID = p.SuiteID, p.SectionID, p.CaseID
		return ids, nil
	}

	ids.SuiteID = p.SuiteID
	switch {
	case ids.SuiteID != NoID:
	case p.Suite != "":
		if ids.SuiteID, err = r.ResolveSuite(ctx, ids.ProjectID, p.Suite, f.Suite); err != nil {
			return ids, err
		}
		if ids.SuiteID == NoID {
			return ids, nil
		}
	default:
		if ids.SuiteID, err = r.DefaultSuite(ctx, ids.ProjectID); err != nil {
			return ids, err
		}
	}

	ids.SectionID = p.SectionID
	if ids.SectionID == NoID && p.Section != "" {
		if ids.SectionID, err = r.ResolveSection(ctx, ids.ProjectID, ids.SuiteID, p.Section, f.Section); err != nil {
			return ids, err
		}
	}

	ids.CaseID = p.CaseID
	if ids.CaseID == NoID && p.Case != "" {
		if p.Section != "" && ids.SectionID == NoID {
			return ids, nil
		}
		if ids.CaseID, err = r.ResolveCase(ctx, ids.ProjectID, ids.SuiteID, ids.SectionID, p.Case, f.Case); err != nil {
			return ids, err
		}
	}
	return ids, nil
}
