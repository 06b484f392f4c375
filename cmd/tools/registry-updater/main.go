// cmd/tools/registry-updater/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"intake-crm-workers/internal/common/validation"
	"intake-crm-workers/pkg/registry"
)

const defaultRegistryPath = "pkg/registry/activities.json"

func main() {
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)

	listPath := listCmd.String("path", defaultRegistryPath, "Path to registry file")

	updatePath := updateCmd.String("path", defaultRegistryPath, "Path to registry file")
	taskType := updateCmd.String("taskType", "", "Task type to update (e.g., filter-lead-queue)")
	field := updateCmd.String("field", "", "Field to update (status, version, timeout, retries)")
	value := updateCmd.String("value", "", "New value for the field")

	validatePath := validateCmd.String("path", "", "Path to registry file (defaults to the embedded registry)")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "list":
		listCmd.Parse(os.Args[2:])
		reg, err := registry.LoadRegistry(*listPath)
		if err != nil {
			fail("failed to load registry", err)
		}
		for _, a := range reg.Activities {
			fmt.Println(formatActivity(a))
		}

	case "update":
		updateCmd.Parse(os.Args[2:])
		if *taskType == "" || *field == "" || *value == "" {
			fmt.Println("Error: taskType, field, and value are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		if err := updateActivity(*updatePath, *taskType, *field, *value); err != nil {
			fail("error updating activity", err)
		}
		fmt.Printf("Updated %s: %s = %s\n", *taskType, *field, *value)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		n, err := validateRegistry(*validatePath)
		if err != nil {
			fail("registry validation failed", err)
		}
		fmt.Printf("Registry validation passed. Found %d activities.\n", n)

	default:
		help()
	}
}

func formatActivity(a registry.Activity) string {
	return fmt.Sprintf("%-24s %-12s %-8s retries=%d timeout=%s workflows=%s tags=%s",
		a.TaskType, a.ImplementationStatus, a.Version, a.Retries, a.Timeout,
		strings.Join(a.Workflows, ","), strings.Join(a.Tags, ","))
}

func updateActivity(path, taskType, field, value string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	a, ok := reg.Find(taskType)
	if !ok {
		return fmt.Errorf("activity with task type %s not found", taskType)
	}

	switch field {
	case "status":
		a.ImplementationStatus = value
	case "version":
		a.Version = value
	case "timeout":
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid timeout value: %w", err)
		}
		a.Timeout = value
	case "retries":
		retries, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid retries value: %w", err)
		}
		a.Retries = retries
	default:
		return fmt.Errorf("unknown field: %s", field)
	}

	if err := reg.Validate(); err != nil {
		return err
	}
	reg.LastUpdated = time.Now().Format("2006-01-02")
	return reg.Save(path)
}

// validateRegistry checks required fields and that every schema compiles.
func validateRegistry(path string) (int, error) {
	var (
		reg *registry.ActivityRegistry
		err error
	)
	if path == "" {
		reg, err = registry.Default()
	} else {
		reg, err = registry.LoadRegistry(path)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load registry: %w", err)
	}

	if err := reg.Validate(); err != nil {
		return 0, err
	}
	if _, err := validation.NewValidator(reg); err != nil {
		return 0, err
	}
	return len(reg.Activities), nil
}

func fail(msg string, err error) {
	fmt.Printf("%s: %v\n", msg, err)
	os.Exit(1)
}

func help() {
	fmt.Print(`
Usage: registry-updater <command> [flags]

Commands:
  list      List activities with status, version, retry budget, workflows and tags
  update    Update one field of an activity
  validate  Validate the registry and compile its JSON schemas
  help      Show this help message

Examples:
  registry-updater list
  registry-updater update -taskType notify-queue-backlog -field retries -value 5
  registry-updater validate -path pkg/registry/activities.json

Use 'registry-updater <command> -h' for more information about a command.
`)
}
