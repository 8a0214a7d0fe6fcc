package utils

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/lfsantos/tablesync/pkg/models"
)

// identifierPattern is the allow-list for table and column names.
// Identifiers end up interpolated into SQL text (they cannot be bind
// parameters), so anything outside this vocabulary is rejected.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether a name is safe to use as a SQL
// table or column identifier
func ValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// ValidIdentifiers checks a list of names and returns the first offender
func ValidIdentifiers(names []string) error {
	for _, name := range names {
		if !ValidIdentifier(name) {
			return fmt.Errorf("invalid identifier: %q", name)
		}
	}
	return nil
}

// SetupLogging configures the logging system
func SetupLogging(logLevel string) *logrus.Logger {
	logger := logrus.New()

	levelStr := logLevel
	if levelStr == "" {
		levelStr = os.Getenv("SYNC_LOG_LEVEL")
		if levelStr == "" {
			levelStr = "info"
		}
	}

	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}

	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	logger.SetOutput(os.Stdout)

	return logger
}

// LoadEnvironmentVariables loads environment variables from a .env file
func LoadEnvironmentVariables(envFile string, logger *logrus.Logger) bool {
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		sampleEnvFile := envFile + ".sample"
		if _, err := os.Stat(sampleEnvFile); err == nil {
			logger.Infof("No %s file found, but %s exists. Consider copying %s to %s and updating it.",
				envFile, sampleEnvFile, sampleEnvFile, envFile)
		}
	}

	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			logger.Warningf("Error loading %s file: %v", envFile, err)
		} else {
			logger.Infof("Loaded environment variables from %s", envFile)
		}
	} else {
		logger.Infof("No %s file found, using existing environment variables", envFile)
	}

	requiredVars := []string{"SOURCE_DB_HOST", "SOURCE_DB_USER", "SOURCE_DB_NAME", "DEST_DB_HOST", "DEST_DB_USER", "DEST_DB_NAME"}
	var missingVars []string

	for _, v := range requiredVars {
		if os.Getenv(v) == "" {
			missingVars = append(missingVars, v)
		}
	}

	if len(missingVars) > 0 {
		logger.Warningf("Missing environment variables: %s", strings.Join(missingVars, ", "))
		logger.Info("These can be provided via command line arguments, environment variables, or a .env file")
		return false
	}

	return true
}

// ParseTableList splits a comma-separated table list, trimming blanks
// and dropping duplicates while preserving order
func ParseTableList(raw string) []string {
	var tables []string
	seen := make(map[string]bool)

	for _, part := range strings.Split(raw, ",") {
		name := strings.TrimSpace(part)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		tables = append(tables, name)
	}

	return tables
}

// ValidateConnectionParams validates database connection parameters
func ValidateConnectionParams(role, host, user, password, database, port string, logger *logrus.Logger) bool {
	if host == "" {
		logger.Errorf("%s database host is required", role)
		return false
	}

	if user == "" {
		logger.Errorf("%s database user is required", role)
		return false
	}

	if password == "" { // Empty password is allowed
		logger.Warningf("%s database password is empty", role)
	}

	if database == "" {
		logger.Errorf("%s database name is required", role)
		return false
	}

	if _, err := strconv.Atoi(port); err != nil {
		logger.Errorf("Invalid %s port number: %s", role, port)
		return false
	}

	return true
}

// PrintSummary prints a per-table report of the sync run
func PrintSummary(results []models.SyncResult) {
	counts := make(map[models.SyncStatus]int)
	var totalRows int64

	fmt.Println("\n" + strings.Repeat("=", 50))
	fmt.Println("TABLE SYNC SUMMARY")
	fmt.Println(strings.Repeat("=", 50))

	for _, res := range results {
		counts[res.Status]++
		totalRows += res.RowsApplied

		line := fmt.Sprintf("  %-30s %s", res.Table, res.Status)
		if res.Status == models.StatusSynced {
			line += fmt.Sprintf(" (%d rows)", res.RowsApplied)
		}
		if res.Reason != "" {
			line += fmt.Sprintf(" - %s", res.Reason)
		}
		fmt.Println(line)
	}

	fmt.Println(strings.Repeat("-", 50))
	fmt.Printf("Tables processed: %d\n", len(results))
	fmt.Printf("Up to date: %d, synced: %d, skipped: %d, failed: %d\n",
		counts[models.StatusUpToDate], counts[models.StatusSynced],
		counts[models.StatusSkipped], counts[models.StatusFailed])
	fmt.Printf("Rows applied: %d\n", totalRows)
	fmt.Println(strings.Repeat("=", 50))
}
