package config

// Config file names looked up in the working directory.
const (
	ConfigFileName    = "tidemark.yaml"
	ConfigFileNameAlt = "tidemark.yml"
)

// defaults returns the default configuration as a flat koanf confmap.
func defaults() map[string]any {
	return map[string]any{
		"project_root":          ".",
		"governance_file":       "governance.yaml",
		"ingest.binary":         "meltano",
		"ingest.default_job":    "import",
		"ingest.run_dir":        ".meltano/run",
		"transform.binary":      "dbt",
		"warehouse.host":        "postgres",
		"warehouse.port":        5432,
		"warehouse.database":    "datasets",
		"warehouse.user":        "postgres",
		"warehouse.schema":      "raw",
		"lineage.url":           "http://localhost:5000",
		"executor.grace_period": "10s",
		"executor.tail_lines":   50,
	}
}
