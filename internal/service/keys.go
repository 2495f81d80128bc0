package service

import "strconv"

// Persisted key layout.
const (
	keyAccountDirectory = "account_directory"
	keyCurrentSession   = "current_session"

	prefixRepos    = "workspace_repos_"
	prefixBranches = "workspace_branches_"
	prefixEnvs     = "workspace_envs_"
)

func reposKey(accountID int64) string    { return prefixRepos + strconv.FormatInt(accountID, 10) }
func branchesKey(accountID int64) string { return prefixBranches + strconv.FormatInt(accountID, 10) }
func envsKey(accountID int64) string     { return prefixEnvs + strconv.FormatInt(accountID, 10) }
