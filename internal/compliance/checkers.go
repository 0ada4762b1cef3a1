package compliance

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"exportready-backend/internal/countries"
	"exportready-backend/internal/llm"
	"exportready-backend/internal/shared/metrics"
	"exportready-backend/internal/shared/telemetry"
	"exportready-backend/internal/shared/util"
)

// RuleSource supplies aggregated regulations; countries.Service satisfies it.
type RuleSource interface {
	RuleSet(ctx context.Context, countryCode string, category countries.RuleCategory) (countries.RuleSet, error)
}

// Checker names used in logs and metrics.
const (
	CheckerIngredient    = "ingredient"
	CheckerSpecification = "specification"
	CheckerPackaging     = "packaging"
)

// IngredientChecker looks for banned ingredients in the material composition.
type IngredientChecker struct {
	Rules    RuleSource
	Analyzer llm.Analyzer
}

// Check returns issues for material against the Ingredient rules of countryCode.
// The error is only set when the rule lookup itself fails.
func (c IngredientChecker) Check(ctx context.Context, material, countryCode string) ([]Issue, error) {
	set, err := c.Rules.RuleSet(ctx, countryCode, countries.CategoryIngredient)
	if err != nil {
		return nil, err
	}
	if len(set.ForbiddenKeywords) == 0 {
		return []Issue{}, nil
	}
	prompt := ingredientPrompt(material, set.ForbiddenKeywords)
	return ask(ctx, c.Analyzer, CheckerIngredient, countryCode, prompt, ingredientSystemPrompt), nil
}

// SpecificationChecker compares quality specs with Labeling requirements.
type SpecificationChecker struct {
	Rules    RuleSource
	Analyzer llm.Analyzer
}

// Check returns issues for specs against the Labeling rules of countryCode.
func (c SpecificationChecker) Check(ctx context.Context, specs map[string]any, countryCode string) ([]Issue, error) {
	set, err := c.Rules.RuleSet(ctx, countryCode, countries.CategoryLabeling)
	if err != nil {
		return nil, err
	}
	if len(set.RequiredSpecs) == 0 {
		return []Issue{}, nil
	}
	prompt := specificationPrompt(specs, set.RequiredSpecs)
	return ask(ctx, c.Analyzer, CheckerSpecification, countryCode, prompt, specificationSystemPrompt), nil
}

// PackagingChecker asks which certifications the packaging type needs.
type PackagingChecker struct {
	Rules    RuleSource
	Analyzer llm.Analyzer
}

// Check returns issues for packaging against the Physical rules of countryCode.
// Rule descriptions are sent along with the required specs.
func (c PackagingChecker) Check(ctx context.Context, packaging, countryCode string) ([]Issue, error) {
	set, err := c.Rules.RuleSet(ctx, countryCode, countries.CategoryPhysical)
	if err != nil {
		return nil, err
	}
	requirements := append(append([]string{}, set.RequiredSpecs...), set.Descriptions...)
	if set.Empty() || len(requirements) == 0 {
		return []Issue{}, nil
	}
	prompt := packagingPrompt(packaging, countryCode, requirements)
	return ask(ctx, c.Analyzer, CheckerPackaging, countryCode, prompt, packagingSystemPrompt), nil
}

// ask isolates analyzer failures: any error or malformed reply yields zero issues.
func ask(ctx context.Context, analyzer llm.Analyzer, checker, countryCode, prompt, systemPrompt string) []Issue {
	reply, err := analyzer.Analyze(ctx, prompt, systemPrompt)
	if err != nil {
		degraded(checker, countryCode, prompt, llm.Classify(err))
		return []Issue{}
	}
	issues, err := ParseIssues(reply)
	if err != nil {
		degraded(checker, countryCode, prompt, err)
		return []Issue{}
	}
	return issues
}

func degraded(component, countryCode, prompt string, err error) {
	metrics.IncAdvisoryDegraded(component)
	telemetry.Warn("advisory.degraded", map[string]any{
		"component":    component,
		"country_code": countryCode,
		"prompt_sha":   util.Fingerprint(prompt),
		"error":        util.SanitizeError(err),
	})
}

// Input is the compliance-relevant view of a product, live or snapshotted.
type Input struct {
	MaterialComposition string
	QualitySpecs        map[string]any
	PackagingType       string
}

// Checkers runs the three rule checkers for one country.
type Checkers struct {
	Ingredient    IngredientChecker
	Specification SpecificationChecker
	Packaging     PackagingChecker
}

// NewCheckers builds all three checkers over the same rules and analyzer.
func NewCheckers(rules RuleSource, analyzer llm.Analyzer) Checkers {
	return Checkers{
		Ingredient:    IngredientChecker{Rules: rules, Analyzer: analyzer},
		Specification: SpecificationChecker{Rules: rules, Analyzer: analyzer},
		Packaging:     PackagingChecker{Rules: rules, Analyzer: analyzer},
	}
}

// Run executes the checkers concurrently and concatenates their issues in
// Ingredient, Specification, Packaging order.
func (c Checkers) Run(ctx context.Context, in Input, countryCode string) ([]Issue, error) {
	var ingredient, specification, packaging []Issue
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ingredient, err = c.Ingredient.Check(gctx, in.MaterialComposition, countryCode)
		if err != nil {
			return fmt.Errorf("%s rules: %w", CheckerIngredient, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		specification, err = c.Specification.Check(gctx, in.QualitySpecs, countryCode)
		if err != nil {
			return fmt.Errorf("%s rules: %w", CheckerSpecification, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		packaging, err = c.Packaging.Check(gctx, in.PackagingType, countryCode)
		if err != nil {
			return fmt.Errorf("%s rules: %w", CheckerPackaging, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]Issue, 0, len(ingredient)+len(specification)+len(packaging))
	out = append(out, ingredient...)
	out = append(out, specification...)
	out = append(out, packaging...)
	return out, nil
}
