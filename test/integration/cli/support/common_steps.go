package support

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cucumber/godog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/MeKo-Tech/sif/cmd/sif/cmd"
	"github.com/MeKo-Tech/sif/internal/testutil"
)

var placeholder = regexp.MustCompile(`\{(\w+)(?::([\w.]+))?\}`)

// substituteCommandVariables expands {tmp}, {corpus}, {config},
// {logo:<shape>} and {scene:<n>} in a command line.
func (testCtx *TestContext) substituteCommandVariables(command string) (string, error) {
	var firstErr error
	out := placeholder.ReplaceAllStringFunc(command, func(m string) string {
		parts := placeholder.FindStringSubmatch(m)
		name, arg := parts[1], parts[2]
		switch name {
		case "tmp":
			return testCtx.TempDir
		case "config":
			return testCtx.ConfigFile
		case "corpus":
			if testCtx.Corpus == nil {
				firstErr = errors.New("no corpus has been created")
				return m
			}
			return testCtx.Corpus.Root
		case "logo":
			if testCtx.Corpus == nil {
				firstErr = errors.New("no corpus has been created")
				return m
			}
			return filepath.Join(testCtx.Corpus.Root, testutil.LogoPartition, arg+".png")
		case "scene":
			n, err := strconv.Atoi(arg)
			if err != nil || testCtx.Corpus == nil || n < 1 || n > len(testCtx.Corpus.General) {
				firstErr = fmt.Errorf("no scene %q in the corpus", arg)
				return m
			}
			return filepath.Join(testCtx.Corpus.Root, testCtx.Corpus.General[n-1])
		default:
			return m
		}
	})
	return out, firstErr
}

// aTestCorpus writes the standard corpus of scenes and logo glyphs.
func (testCtx *TestContext) aTestCorpus() error {
	layout, err := testutil.WriteCorpus(filepath.Join(testCtx.TempDir, "corpus"))
	if err != nil {
		return err
	}
	testCtx.Corpus = &layout
	return nil
}

// aCorpusWithoutLogos writes a corpus that has no logo partition.
func (testCtx *TestContext) aCorpusWithoutLogos() error {
	root := filepath.Join(testCtx.TempDir, "corpus")
	layout := testutil.CorpusLayout{Root: root}
	for i := range 2 {
		rel := filepath.Join("general", fmt.Sprintf("scene_%d.png", i))
		if err := testutil.WriteImage(testutil.TexturedImage(testutil.MediumSize, int64(10+i)), filepath.Join(root, rel)); err != nil {
			return err
		}
		layout.General = append(layout.General, rel)
	}
	testCtx.Corpus = &layout
	return nil
}

// aQueryImageShowing writes a glyph or textured query image into {tmp}.
func (testCtx *TestContext) aQueryImageShowing(name, content string) error {
	path := filepath.Join(testCtx.TempDir, name)
	switch content {
	case "textured scene":
		return testutil.WriteImage(testutil.TexturedImage(testutil.MediumSize, 42), path)
	case testutil.ShapeStar, testutil.ShapeTriangle, testutil.ShapeCross, testutil.ShapeRectangle, testutil.ShapeCircle:
		return testutil.WriteImage(testutil.ShapeImage(content, testutil.MediumSize, color.Black, color.White), path)
	default:
		return fmt.Errorf("unknown query content %q", content)
	}
}

// aFileContaining writes arbitrary bytes, e.g. a file that is not an image.
func (testCtx *TestContext) aFileContaining(name string, content *godog.DocString) error {
	return os.WriteFile(filepath.Join(testCtx.TempDir, name), []byte(content.Content), 0o600)
}

// aConfigFileWith writes {config} from the doc string after substitution.
func (testCtx *TestContext) aConfigFileWith(content *godog.DocString) error {
	body, err := testCtx.substituteCommandVariables(content.Content)
	if err != nil {
		return err
	}
	testCtx.ConfigFile = filepath.Join(testCtx.TempDir, "sif.yaml")
	return os.WriteFile(testCtx.ConfigFile, []byte(body), 0o600)
}

// theEnvironmentVariableIsSetTo sets an environment variable for the scenario.
func (testCtx *TestContext) theEnvironmentVariableIsSetTo(name, value string) error {
	testCtx.setEnv(name, value)
	return nil
}

// iRunCommand executes a sif command line in-process.
func (testCtx *TestContext) iRunCommand(command string) error {
	command, err := testCtx.substituteCommandVariables(command)
	if err != nil {
		return err
	}
	testCtx.LastCommand = command
	testCtx.LastStartTime = time.Now()

	parts := strings.Fields(command)
	if len(parts) == 0 {
		return errors.New("empty command")
	}
	if parts[0] != "sif" {
		return fmt.Errorf("only sif commands can be run, got %q", parts[0])
	}

	root := cmd.GetRootCommand()
	resetFlags(root)

	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(parts[1:])
	defer func() {
		root.SetOut(nil)
		root.SetErr(nil)
		root.SetArgs(nil)
	}()

	err = root.Execute()
	testCtx.LastOutput = stdout.String()
	testCtx.LastStderr = stderr.String()
	testCtx.LastError = err
	testCtx.LastDuration = time.Since(testCtx.LastStartTime)
	testCtx.LastExitCode = 0
	if err != nil {
		testCtx.LastExitCode = 1
	}
	return nil
}

// resetFlags restores every flag of the command tree to its default so
// scenarios do not leak flag values into each other.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// theCommandShouldSucceed verifies the command succeeded.
func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("command failed with exit code %d: %w\nOutput: %s\nStderr: %s",
			testCtx.LastExitCode, testCtx.LastError, testCtx.LastOutput, testCtx.LastStderr)
	}
	return nil
}

// theCommandShouldFail verifies the command failed.
func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("command succeeded when it should have failed\nOutput: %s", testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldContain verifies stdout contains specific text.
func (testCtx *TestContext) theOutputShouldContain(expectedText string) error {
	if !strings.Contains(testCtx.LastOutput, expectedText) {
		return fmt.Errorf("output does not contain '%s'\nActual output: %s", expectedText, testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldNotContain verifies stdout lacks specific text.
func (testCtx *TestContext) theOutputShouldNotContain(text string) error {
	if strings.Contains(testCtx.LastOutput, text) {
		return fmt.Errorf("output unexpectedly contains '%s'\nActual output: %s", text, testCtx.LastOutput)
	}
	return nil
}

// stderrShouldContain verifies the diagnostic stream contains specific text.
func (testCtx *TestContext) stderrShouldContain(expectedText string) error {
	if !strings.Contains(testCtx.LastStderr, expectedText) {
		return fmt.Errorf("stderr does not contain '%s'\nActual stderr: %s", expectedText, testCtx.LastStderr)
	}
	return nil
}

// theErrorShouldMention verifies the error message contains specific text.
func (testCtx *TestContext) theErrorShouldMention(errorText string) error {
	if testCtx.LastError == nil {
		return fmt.Errorf("no error occurred, but expected error containing '%s'", errorText)
	}
	if !strings.Contains(strings.ToLower(testCtx.LastError.Error()), strings.ToLower(errorText)) {
		return fmt.Errorf("error does not contain '%s'\nActual error: %v", errorText, testCtx.LastError)
	}
	return nil
}

// outputJSON decodes stdout as a JSON object.
func (testCtx *TestContext) outputJSON() (map[string]interface{}, error) {
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(testCtx.LastOutput), &data); err != nil {
		return nil, fmt.Errorf("output is not valid JSON: %w\nOutput: %s", err, testCtx.LastOutput)
	}
	return data, nil
}

// theOutputShouldBeValidJSON verifies stdout is a JSON object.
func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	_, err := testCtx.outputJSON()
	return err
}

// theJSONShouldContain verifies a (dotted) field exists in the output JSON.
func (testCtx *TestContext) theJSONShouldContain(field string) error {
	data, err := testCtx.outputJSON()
	if err != nil {
		return err
	}
	_, err = lookupField(data, field)
	return err
}

// theJSONFieldShouldBe compares a (dotted) output JSON field to a value.
func (testCtx *TestContext) theJSONFieldShouldBe(field, expected string) error {
	data, err := testCtx.outputJSON()
	if err != nil {
		return err
	}
	return fieldEquals(data, field, expected)
}

// atMostNResultsShouldBeReported checks the length of the results array of
// a JSON report.
func (testCtx *TestContext) atMostNResultsShouldBeReported(n int) error {
	data, err := testCtx.outputJSON()
	if err != nil {
		return err
	}
	results, err := lookupField(data, "results")
	if err != nil {
		return err
	}
	arr, ok := results.([]interface{})
	if !ok {
		return fmt.Errorf("results is %T, not an array", results)
	}
	if len(arr) > n {
		return fmt.Errorf("expected at most %d results, got %d", n, len(arr))
	}
	return nil
}

// theOutputShouldBeCSVWithHeader parses stdout as CSV and checks its header.
func (testCtx *TestContext) theOutputShouldBeCSVWithHeader(header string) error {
	records, err := csv.NewReader(strings.NewReader(testCtx.LastOutput)).ReadAll()
	if err != nil {
		return fmt.Errorf("output is not valid CSV: %w\nOutput: %s", err, testCtx.LastOutput)
	}
	if len(records) == 0 {
		return errors.New("CSV output is empty")
	}
	if got := strings.Join(records[0], ","); got != header {
		return fmt.Errorf("CSV header is %q, expected %q", got, header)
	}
	return nil
}

// everyCSVRowShouldHaveRoute checks the route column of every CSV row.
func (testCtx *TestContext) everyCSVRowShouldHaveRoute(route string) error {
	records, err := csv.NewReader(strings.NewReader(testCtx.LastOutput)).ReadAll()
	if err != nil {
		return err
	}
	for i, rec := range records[1:] {
		if len(rec) < 3 || rec[2] != route {
			return fmt.Errorf("row %d has route %v, expected %s", i+1, rec, route)
		}
	}
	return nil
}

// theFileShouldExist verifies a file exists after substitution.
func (testCtx *TestContext) theFileShouldExist(filename string) error {
	path, err := testCtx.substituteCommandVariables(filename)
	if err != nil {
		return err
	}
	if !testutil.FileExists(path) {
		return fmt.Errorf("file %s does not exist", path)
	}
	return nil
}

// theFileShouldContain verifies a file contains specific text.
func (testCtx *TestContext) theFileShouldContain(filename, expected string) error {
	path, err := testCtx.substituteCommandVariables(filename)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: scenario controlled path
	if err != nil {
		return err
	}
	if !strings.Contains(string(data), expected) {
		return fmt.Errorf("file %s does not contain '%s'", path, expected)
	}
	return nil
}

// lookupField walks a dotted path through nested JSON objects.
func lookupField(data map[string]interface{}, field string) (interface{}, error) {
	var current interface{} = data
	parts := strings.Split(field, ".")
	for i, part := range parts {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("cannot navigate into non-object field '%s'", strings.Join(parts[:i], "."))
		}
		val, exists := obj[part]
		if !exists {
			return nil, fmt.Errorf("field '%s' not found in JSON", strings.Join(parts[:i+1], "."))
		}
		current = val
	}
	return current, nil
}

func fieldEquals(data map[string]interface{}, field, expected string) error {
	val, err := lookupField(data, field)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(val); got != expected {
		return fmt.Errorf("field '%s' is %q, expected %q", field, got, expected)
	}
	return nil
}

// RegisterCommonSteps registers corpus, command and output steps.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	// Setup steps
	sc.Step(`^a test corpus$`, testCtx.aTestCorpus)
	sc.Step(`^a corpus without logos$`, testCtx.aCorpusWithoutLogos)
	sc.Step(`^a query image "([^"]*)" showing a ([a-z ]+)$`, testCtx.aQueryImageShowing)
	sc.Step(`^a file "([^"]*)" containing:$`, testCtx.aFileContaining)
	sc.Step(`^a config file with:$`, testCtx.aConfigFileWith)
	sc.Step(`^the environment variable "([^"]*)" is set to "([^"]*)"$`, testCtx.theEnvironmentVariableIsSetTo)

	// Command execution steps
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)

	// Output validation steps
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, testCtx.theOutputShouldNotContain)
	sc.Step(`^stderr should contain "([^"]*)"$`, testCtx.stderrShouldContain)
	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the JSON should contain "([^"]*)"$`, testCtx.theJSONShouldContain)
	sc.Step(`^the JSON field "([^"]*)" should be "([^"]*)"$`, testCtx.theJSONFieldShouldBe)
	sc.Step(`^at most (\d+) results should be reported$`, testCtx.atMostNResultsShouldBeReported)
	sc.Step(`^the output should be CSV with header "([^"]*)"$`, testCtx.theOutputShouldBeCSVWithHeader)
	sc.Step(`^every CSV row should be on the "([^"]*)" route$`, testCtx.everyCSVRowShouldHaveRoute)

	// File steps
	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should contain "([^"]*)"$`, testCtx.theFileShouldContain)
}
