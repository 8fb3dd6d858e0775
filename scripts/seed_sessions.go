// seed_sessions.go creates assessment sessions for a list of candidates via
// the profile admin API.
//
// The candidates file is markdown: a "## <format>" header selects the format
// for the bullets below it, and each "- Name, Role" bullet is one candidate.
//
// Usage:
//
//	go run scripts/seed_sessions.go -candidates candidates.md -api http://localhost:8700 -token $PROFILE_ADMIN_TOKEN
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
)

type createRequest struct {
	AssessmentType string `json:"assessment_type,omitempty"`
	Format         string `json:"format,omitempty"`
	CandidateName  string `json:"candidate_name"`
	CandidateRole  string `json:"candidate_role,omitempty"`
}

type createResponse struct {
	Code  string `json:"code"`
	Total int    `json:"total"`
}

func main() {
	path := flag.String("candidates", "candidates.md", "path to the candidates file")
	apiURL := flag.String("api", "http://localhost:8700", "profile API base URL")
	token := flag.String("token", os.Getenv("PROFILE_ADMIN_TOKEN"), "admin bearer token")
	assessmentType := flag.String("assessment", "", "assessment type (server default when empty)")
	dryRun := flag.Bool("dry-run", false, "print requests without posting")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	f, err := os.Open(*path)
	if err != nil {
		logger.Error("open candidates file", "error", err)
		os.Exit(1)
	}
	defer f.Close()

	reqs, err := parseCandidates(bufio.NewScanner(f), *assessmentType)
	if err != nil {
		logger.Error("parse candidates file", "error", err)
		os.Exit(1)
	}
	logger.Info("parsed candidates", "count", len(reqs), "file", *path)

	if *dryRun {
		for i, r := range reqs {
			format := r.Format
			if format == "" {
				format = "(default)"
			}
			fmt.Printf("[%d] %s (role=%s, format=%s)\n", i+1, r.CandidateName, r.CandidateRole, format)
		}
		return
	}

	client := &http.Client{}
	created, skipped := 0, 0
	for _, r := range reqs {
		code, err := post(client, *apiURL, *token, r)
		if err != nil {
			logger.Warn("skip candidate", "name", r.CandidateName, "error", err)
			skipped++
			continue
		}
		fmt.Printf("%s\t%s\n", code, r.CandidateName)
		created++
	}
	logger.Info("done", "created", created, "skipped", skipped)
}

func parseCandidates(scanner *bufio.Scanner, assessmentType string) ([]createRequest, error) {
	var out []createRequest
	var format string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if strings.HasPrefix(line, "#") {
			format = strings.ToLower(strings.TrimSpace(strings.TrimLeft(line, "# ")))
			continue
		}
		if !strings.HasPrefix(line, "- ") {
			continue
		}

		name, role, _ := strings.Cut(strings.TrimPrefix(line, "- "), ",")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		out = append(out, createRequest{
			AssessmentType: assessmentType,
			Format:         format,
			CandidateName:  name,
			CandidateRole:  strings.TrimSpace(role),
		})
	}
	return out, scanner.Err()
}

func post(client *http.Client, apiURL, token string, r createRequest) (string, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequest("POST", apiURL+"/api/v1/sessions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	var cr createResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return cr.Code, nil
}
