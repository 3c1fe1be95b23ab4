// Package main implements the bestiary-query binary, an operator CRUD tool
// over the pipeline stores: point and range finds, projections, sort and
// limit, bulk field-set updates, and bulk deletes.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/AntonioDavid333/bestiary/internal/app"
	"github.com/AntonioDavid333/bestiary/internal/config"
	"github.com/AntonioDavid333/bestiary/internal/store"
)

func main() {
	var (
		dataDir   string
		storeName string
		op        string
		filterArg string
		setArg    string
		project   string
		sortField string
		desc      bool
		limit     int
	)

	flag.StringVar(&dataDir, "data-dir", "", "Base directory for all data files")
	flag.StringVar(&storeName, "store", app.StoreCurated, "Store to query: raw, curated, analytics")
	flag.StringVar(&op, "op", "find", "Operation: find, count, update, delete")
	flag.StringVar(&filterArg, "filter", "", "Filter conditions, comma separated (e.g. 'total_base_stats>400,type_primary=Grass')")
	flag.StringVar(&setArg, "set", "", "Field-set mutation for update, comma separated (e.g. 'generation=1')")
	flag.StringVar(&project, "project", "", "Projection fields, comma separated")
	flag.StringVar(&sortField, "sort", "", "Sort field")
	flag.BoolVar(&desc, "desc", false, "Sort descending")
	flag.IntVar(&limit, "limit", 0, "Limit result count (0 = no limit)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "bestiary-query - Operator CRUD over the bestiary stores\n\n")
		fmt.Fprintf(os.Stderr, "Usage: bestiary-query [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  bestiary-query --store curated --filter 'total_base_stats>400' --sort total_base_stats --desc --limit 10\n")
		fmt.Fprintf(os.Stderr, "  bestiary-query --store curated --filter 'name=Pikachu' --project name,stats.speed.base\n")
		fmt.Fprintf(os.Stderr, "  bestiary-query --store raw --op update --set generation=1\n")
		fmt.Fprintf(os.Stderr, "  bestiary-query --store raw --op delete --filter 'catch_rate<10'\n")
	}
	flag.Parse()

	_ = godotenv.Load()

	cfg := config.DefaultConfig()
	config.LoadFromEnv(cfg)
	if dataDir != "" {
		cfg.DataDir = dataDir
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to open stores: %v", err)
	}
	defer application.Close()

	target, err := pickStore(application, storeName)
	if err != nil {
		log.Fatalf("%v", err)
	}

	filter, err := parseFilter(filterArg)
	if err != nil {
		log.Fatalf("Invalid filter: %v", err)
	}

	ctx := context.Background()
	switch op {
	case "find":
		err = runFind(ctx, target, filter, project, sortField, desc, limit)
	case "count":
		err = runCount(ctx, target)
	case "update":
		err = runUpdate(ctx, target, filter, setArg)
	case "delete":
		err = runDelete(ctx, target, filter)
	default:
		log.Fatalf("Unknown operation: %s (must be find, count, update, or delete)", op)
	}
	if err != nil {
		log.Fatalf("Operation failed: %v", err)
	}
}

func pickStore(application *app.App, name string) (*store.Store, error) {
	raw, curated, analytics := application.Stores()
	switch name {
	case app.StoreRaw:
		return raw, nil
	case app.StoreCurated:
		return curated, nil
	case app.StoreAnalytics:
		return analytics, nil
	default:
		return nil, fmt.Errorf("unknown store: %s (must be raw, curated, or analytics)", name)
	}
}

func runFind(ctx context.Context, s *store.Store, filter store.Filter, project, sortField string, desc bool, limit int) error {
	opts := &store.FindOptions{Limit: limit}
	if project != "" {
		opts.Projection = strings.Split(project, ",")
	}
	if sortField != "" {
		opts.Sort = &store.Sort{Field: sortField, Descending: desc}
	}

	cur, err := s.Find(ctx, filter, opts)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	for cur.Next() {
		if err := enc.Encode(cur.Doc()); err != nil {
			return err
		}
	}
	log.Printf("%d documents", cur.Len())
	return nil
}

func runCount(ctx context.Context, s *store.Store) error {
	n, err := s.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Println(n)
	return nil
}

func runUpdate(ctx context.Context, s *store.Store, filter store.Filter, setArg string) error {
	set, err := parseSet(setArg)
	if err != nil {
		return err
	}

	matched, modified, err := s.Update(ctx, filter, set)
	if err != nil {
		return err
	}
	log.Printf("matched=%d modified=%d", matched, modified)
	return nil
}

func runDelete(ctx context.Context, s *store.Store, filter store.Filter) error {
	deleted, err := s.Delete(ctx, filter)
	if err != nil {
		return err
	}
	log.Printf("deleted=%d", deleted)
	return nil
}

// parseFilter parses comma separated conditions of the form
// field<op>value, where <op> is one of =, >, <, >=, <=, or ' in ' with
// pipe-separated values.
func parseFilter(arg string) (store.Filter, error) {
	if arg == "" {
		return nil, nil
	}

	var filter store.Filter
	for _, part := range strings.Split(arg, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		cond, err := parseCond(part)
		if err != nil {
			return nil, err
		}
		filter = append(filter, cond)
	}
	return filter, nil
}

func parseCond(part string) (store.Cond, error) {
	if field, list, found := strings.Cut(part, " in "); found {
		var values []interface{}
		for _, v := range strings.Split(list, "|") {
			values = append(values, parseValue(strings.TrimSpace(v)))
		}
		return store.Cond{Field: strings.TrimSpace(field), Op: store.OpIn, Values: values}, nil
	}

	// Two-character operators first so ">=" is not read as ">".
	for _, op := range []store.Op{store.OpGte, store.OpLte, store.OpGt, store.OpLt, store.OpEq} {
		if field, value, found := strings.Cut(part, string(op)); found {
			return store.Cond{
				Field: strings.TrimSpace(field),
				Op:    op,
				Value: parseValue(strings.TrimSpace(value)),
			}, nil
		}
	}
	return store.Cond{}, fmt.Errorf("cannot parse condition %q", part)
}

// parseSet parses comma separated field=value assignments.
func parseSet(arg string) (map[string]interface{}, error) {
	if arg == "" {
		return nil, fmt.Errorf("update requires --set")
	}

	set := make(map[string]interface{})
	for _, part := range strings.Split(arg, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		field, value, found := strings.Cut(part, "=")
		if !found {
			return nil, fmt.Errorf("cannot parse assignment %q", part)
		}
		set[strings.TrimSpace(field)] = parseValue(strings.TrimSpace(value))
	}
	return set, nil
}

// parseValue interprets a literal as JSON when possible, else as a string.
func parseValue(s string) interface{} {
	var v interface{}
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return s
}
