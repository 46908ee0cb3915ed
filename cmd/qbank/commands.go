package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"qbank/internal/app"
	"qbank/internal/audit"
	"qbank/internal/auth"
	"qbank/internal/exporter"
	"qbank/internal/importer"
	"qbank/internal/question"
	"qbank/internal/subject"
)

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a login account",
		RunE:  runUserCreate,
	}
	addStoreFlags(create)
	f := create.Flags()
	f.String("username", "", "Login name (required)")
	f.String("password", "", "Password, at least 8 characters (or set QBANK_PASSWORD)")
	f.String("full-name", "", "Display name")
	f.String("role", auth.RoleAdmin, "Role (admin, student)")
	_ = create.MarkFlagRequired("username")

	cmd.AddCommand(create)
	return cmd
}

func runUserCreate(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)
	cfg := app.LoadConfig(v)

	conn, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	u, err := auth.NewService(conn, auth.ServiceConfig{}).CreateUser(cmd.Context(), auth.CreateUserInput{
		Username: v.GetString("username"),
		Password: v.GetString("password"),
		FullName: v.GetString("full-name"),
		Role:     v.GetString("role"),
	})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	slog.Info("user created", "id", u.ID, "username", u.Username, "role", u.Role)
	return nil
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Parse and commit question text files",
	}

	preview := &cobra.Command{
		Use:   "preview FILE",
		Short: "Print the parsed drafts of a text file as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runImportPreview,
	}
	preview.Flags().StringP("output", "o", "-", "Output file path (- for stdout)")

	commit := &cobra.Command{
		Use:   "commit FILE",
		Short: "Parse a text file and store every valid question",
		Args:  cobra.ExactArgs(1),
		RunE:  runImportCommit,
	}
	addStoreFlags(commit)

	preview.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
	preview.Flags().String("log-format", "text", "Log format (text, json)")
	for _, c := range []*cobra.Command{preview, commit} {
		c.Flags().Int64("subject-id", 0, "Existing subject id")
		c.Flags().String("subject-name", "", "Subject name, created when missing (wins over --subject-id)")
	}

	cmd.AddCommand(preview, commit)
	return cmd
}

func readDrafts(v *viper.Viper, path string) ([]importer.Draft, error) {
	ref := subject.FromRequest(v.GetInt64("subject-id"), v.GetString("subject-name"))
	if ref.IsZero() {
		return nil, errors.New("--subject-id or --subject-name is required")
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	b = bytes.TrimPrefix(b, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(b) {
		return nil, fmt.Errorf("%s is not UTF-8 text", path)
	}
	text := strings.ReplaceAll(string(b), "\r\n", "\n")
	return importer.NewSession(importer.Parse(text, ref)).Drafts(), nil
}

func runImportPreview(cmd *cobra.Command, args []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)
	drafts, err := readDrafts(v, args[0])
	if err != nil {
		return err
	}

	out, closeOut, err := openOutput(cmd, "output")
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]any{"count": len(drafts), "drafts": drafts}); err != nil {
		_ = closeOut()
		return fmt.Errorf("write drafts: %w", err)
	}
	return closeOut()
}

func runImportCommit(cmd *cobra.Command, args []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)
	drafts, err := readDrafts(v, args[0])
	if err != nil {
		return err
	}

	set := importer.NewSession(drafts).CommitSet()
	slog.Info("parsed import file", "file", args[0], "drafts", len(drafts), "committable", len(set))
	if len(set) == 0 {
		return importer.ErrNothingToImport
	}

	cfg := app.LoadConfig(v)
	conn, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	logSink := audit.NewLog(conn)
	subjects := subject.NewService(conn, logSink)
	questions := question.NewService(conn, subjects, logSink)
	res, err := importer.NewCommitter(conn, subjects, questions, logSink).Commit(cmd.Context(), 0, set)
	if err != nil {
		return err
	}
	slog.Info("import committed", "imported", res.ImportedCount, "subjects", res.SubjectIDs, "batch_id", res.BatchID)
	return nil
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored questions to a file",
		RunE:  runExport,
	}
	addStoreFlags(cmd)
	f := cmd.Flags()
	f.String("mode", string(exporter.ModeCurrent), "Selection mode (current, selected, marked)")
	f.Int64Slice("ids", nil, "Question ids for selected/marked mode")
	f.Int64("subject-id", 0, "Only questions of this subject (current mode)")
	f.String("difficulty", "", "Only questions of this difficulty (current mode)")
	f.String("start-date", "", "Created on or after (YYYY-MM-DD or RFC3339)")
	f.String("end-date", "", "Created on or before (YYYY-MM-DD or RFC3339)")
	f.StringP("format", "f", string(exporter.FormatJSON), "Output format (json, csv, xlsx, pdf, docx)")
	f.Bool("include-answers", false, "Show correct answers in pdf and docx output")
	f.StringP("output", "o", "", "Output file path (default: suggested filename, - for stdout)")
	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)
	cfg := app.LoadConfig(v)

	req, err := exporter.ParseRequest(exportQuery(cmd))
	if err != nil {
		return err
	}
	enc, err := exporter.ForFormat(req.Format)
	if err != nil {
		return err
	}

	conn, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	questions := question.NewService(conn, subject.NewService(conn, audit.Discard{}), audit.Discard{})
	items, err := exporter.NewSelector(questions).Select(cmd.Context(), req)
	if err != nil {
		return err
	}
	body, err := enc.Encode(items, exporter.Options{IncludeAnswers: req.IncludeAnswers})
	if err != nil {
		return err
	}

	if p, _ := cmd.Flags().GetString("output"); p == "" {
		_ = cmd.Flags().Set("output", exporter.Filename(req.Mode, enc, time.Now().UTC()))
	}
	out, closeOut, err := openOutput(cmd, "output")
	if err != nil {
		return err
	}
	if _, err := out.Write(body); err != nil {
		_ = closeOut()
		return fmt.Errorf("write export: %w", err)
	}
	if err := closeOut(); err != nil {
		return fmt.Errorf("close export: %w", err)
	}
	slog.Info("export written", "count", len(items), "format", req.Format, "bytes", len(body))
	return nil
}

// exportQuery reuses the HTTP query parser so the CLI and API agree on
// selection semantics.
func exportQuery(cmd *cobra.Command) url.Values {
	f := cmd.Flags()
	q := url.Values{}
	for _, name := range []string{"mode", "difficulty", "format"} {
		if s, _ := f.GetString(name); s != "" {
			q.Set(name, s)
		}
	}
	for flag, key := range map[string]string{"start-date": "start_date", "end-date": "end_date"} {
		if s, _ := f.GetString(flag); s != "" {
			q.Set(key, s)
		}
	}
	if id, _ := f.GetInt64("subject-id"); id > 0 {
		q.Set("subject_id", strconv.FormatInt(id, 10))
	}
	ids, _ := f.GetInt64Slice("ids")
	for _, id := range ids {
		q.Add("ids", strconv.FormatInt(id, 10))
	}
	if b, _ := f.GetBool("include-answers"); b {
		q.Set("include_answers", "true")
	}
	return q
}

func openOutput(cmd *cobra.Command, flag string) (io.Writer, func() error, error) {
	path, _ := cmd.Flags().GetString(flag)
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, f.Close, nil
}
