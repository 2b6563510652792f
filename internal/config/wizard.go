package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
)

// indexCandidates are local index files offered as the default index_url.
var indexCandidates = []string{
	"documents.json",
	"documents.yaml",
	"documents.yml",
	"apis.json",
	"apis.yaml",
}

// detectIndexFile returns the first index candidate present in the current
// directory.
func detectIndexFile() string {
	for _, name := range indexCandidates {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// RunWizard runs an interactive configuration wizard, saves the result to
// path and returns it.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to apiview! Let's configure your viewer.")
	fmt.Println()

	cfg := DefaultConfig()
	if found := detectIndexFile(); found != "" {
		fmt.Printf("Detected index file: %s\n\n", found)
		cfg.IndexURL = found
	}

	// 1. Index location.
	indexPrompt := promptui.Prompt{
		Label:    "Index URL or file",
		Default:  cfg.IndexURL,
		Validate: validateIndexURL,
	}
	indexURL, err := indexPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("index url: %w", err)
	}
	cfg.IndexURL = strings.TrimSpace(indexURL)

	// 2. Port.
	portPrompt := promptui.Prompt{
		Label:    "Port",
		Default:  strconv.Itoa(cfg.Port),
		Validate: validatePort,
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("port: %w", err)
	}
	cfg.Port, _ = strconv.Atoi(strings.TrimSpace(portStr))

	// 3. Site name.
	namePrompt := promptui.Prompt{
		Label:   "Site name",
		Default: cfg.SiteName,
	}
	siteName, err := namePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("site name: %w", err)
	}
	if s := strings.TrimSpace(siteName); s != "" {
		cfg.SiteName = s
	}

	// 4. Include patterns.
	includePrompt := promptui.Prompt{
		Label:   "Include patterns over group/document (comma-separated globs)",
		Default: strings.Join(cfg.Include, ","),
	}
	includeStr, err := includePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("include patterns: %w", err)
	}
	if include := splitAndTrim(includeStr); len(include) > 0 {
		cfg.Include = include
	}

	// 5. Exclude patterns.
	excludePrompt := promptui.Prompt{
		Label:   "Exclude patterns (comma-separated, leave blank for none)",
		Default: "",
	}
	excludeStr, err := excludePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("exclude patterns: %w", err)
	}
	cfg.Exclude = splitAndTrim(excludeStr)

	// 6. Navigation journal.
	journalPrompt := promptui.Select{
		Label: "Keep a navigation journal",
		Items: []string{
			"yes - record session navigation in " + cfg.DataDir,
			"no  - keep nothing on disk",
		},
	}
	journalIdx, _, err := journalPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("journal selection: %w", err)
	}
	if journalIdx == 1 {
		cfg.DataDir = ""
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}

func validateIndexURL(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("index url is required")
	}
	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return err
		}
		switch u.Scheme {
		case "http", "https", "file":
		default:
			return fmt.Errorf("unsupported scheme %q", u.Scheme)
		}
	}
	return nil
}

func validatePort(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("port must be a number between 1 and 65535")
	}
	return nil
}

// splitAndTrim splits a comma-separated string and trims whitespace.
func splitAndTrim(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if token := strings.TrimSpace(part); token != "" {
			result = append(result, token)
		}
	}
	return result
}
