package trackersdk

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Endpoint paths relative to the API base. Query strings always use '?';
// the client rewrites them for bases that already carry one.

func GetProjectsPath() string             { return "get_projects" }
func GetProjectPath(id int64) string      { return fmt.Sprintf("get_project/%d", id) }
func AddProjectPath() string              { return "add_project" }
func DeleteProjectPath(id int64) string   { return fmt.Sprintf("delete_project/%d", id) }
func GetMilestonesPath(pid int64) string  { return fmt.Sprintf("get_milestones/%d", pid) }
func AddMilestonePath(pid int64) string   { return fmt.Sprintf("add_milestone/%d", pid) }
func DeleteMilestonePath(id int64) string { return fmt.Sprintf("delete_milestone/%d", id) }
func GetSuitesPath(pid int64) string      { return fmt.Sprintf("get_suites/%d", pid) }
func AddSuitePath(pid int64) string       { return fmt.Sprintf("add_suite/%d", pid) }
func DeleteSuitePath(id int64) string     { return fmt.Sprintf("delete_suite/%d", id) }
func AddSectionPath(pid int64) string     { return fmt.Sprintf("add_section/%d", pid) }
func DeleteSectionPath(id int64) string   { return fmt.Sprintf("delete_section/%d", id) }
func AddCasePath(sectionID int64) string  { return fmt.Sprintf("add_case/%d", sectionID) }
func DeleteCasePath(id int64) string      { return fmt.Sprintf("delete_case/%d", id) }
func GetCaseTypesPath() string            { return "get_case_types" }
func GetRunsPath(pid int64) string        { return fmt.Sprintf("get_runs/%d", pid) }
func AddRunPath(pid int64) string         { return fmt.Sprintf("add_run/%d", pid) }
func CloseRunPath(id int64) string        { return fmt.Sprintf("close_run/%d", id) }
func DeleteRunPath(id int64) string       { return fmt.Sprintf("delete_run/%d", id) }
func GetPlansPath(pid int64) string       { return fmt.Sprintf("get_plans/%d", pid) }
func AddPlanPath(pid int64) string        { return fmt.Sprintf("add_plan/%d", pid) }
func DeletePlanPath(id int64) string      { return fmt.Sprintf("delete_plan/%d", id) }
func GetUsersPath() string                { return "get_users" }
func AddResultsPath(runID int64) string   { return fmt.Sprintf("add_results/%d", runID) }

func GetSectionsPath(pid, suiteID int64) string {
	return withQuery(fmt.Sprintf("get_sections/%d", pid), "suite_id", suiteID)
}

func GetCasesPath(pid, suiteID, sectionID int64) string {
	return withQuery(withQuery(fmt.Sprintf("get_cases/%d", pid), "suite_id", suiteID), "section_id", sectionID)
}

func GetUserByEmailPath(email string) string {
	return "get_user_by_email?email=" + url.QueryEscape(email)
}

func AddResultForCasePath(runID, caseID int64) string {
	return fmt.Sprintf("add_result_for_case/%d/%d", runID, caseID)
}

func GetResultsForCasePath(runID, caseID int64) string {
	return fmt.Sprintf("get_results_for_case/%d/%d", runID, caseID)
}

// withQuery appends key=id when id is set.
func withQuery(path, key string, id int64) string {
	if id == 0 {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + key + "=" + strconv.FormatInt(id, 10)
}

// EndpointName is the method segment of an endpoint, used for metric and log labels.
func EndpointName(endpoint string) string {
	endpoint = strings.TrimLeft(endpoint, "/")
	if i := strings.IndexAny(endpoint, "/?&"); i >= 0 {
		return endpoint[:i]
	}
	return endpoint
}
