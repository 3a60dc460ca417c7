package template

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hoiltd/azmp/pkg/logging"
)

const (
	armSchema      = "https://schema.management.azure.com/schemas/2019-04-01/deploymentTemplate.json#"
	uiSchema       = "https://schema.management.azure.com/schemas/0.1.2-preview/CreateUIDefinition.MultiVm.json#"
	viewSchema     = "https://schema.management.azure.com/schemas/viewdefinition/0.0.1-preview/ViewDefinition.json#"
	contentVersion = "1.0.0.0"
)

// Bundle is a rendered application package on disk, ready for validation and
// packaging.
type Bundle struct {
	Dir   string
	Files []string
}

// Generator renders the deployment artifacts of an offer definition
type Generator struct {
	Logger *logging.Logger
}

// NewGenerator creates a generator
func NewGenerator(logger *logging.Logger) *Generator {
	return &Generator{Logger: logger}
}

// Generate renders mainTemplate.json, createUiDefinition.json and
// viewDefinition.json for the definition into outputDir/<name> and returns
// the resulting bundle.
func (g *Generator) Generate(def *Definition, outputDir string) (*Bundle, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	dir := filepath.Join(outputDir, def.Name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create bundle directory: %w", err)
	}

	artifacts := map[string]interface{}{
		"mainTemplate.json":       g.mainTemplate(def),
		"createUiDefinition.json": g.createUIDefinition(def),
		"viewDefinition.json":     g.viewDefinition(def),
	}

	bundle := &Bundle{Dir: dir}
	for _, name := range []string{"mainTemplate.json", "createUiDefinition.json", "viewDefinition.json"} {
		path := filepath.Join(dir, name)
		data, err := json.MarshalIndent(artifacts[name], "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to render %s: %w", name, err)
		}
		if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", name, err)
		}
		bundle.Files = append(bundle.Files, path)
	}

	if g.Logger != nil {
		g.Logger.Info("bundle generated", "offer", def.Name, "dir", dir, "files", len(bundle.Files))
	}
	return bundle, nil
}

// mainTemplate builds the ARM deployment template document
func (g *Generator) mainTemplate(def *Definition) map[string]interface{} {
	parameters := make(map[string]interface{}, len(def.Parameters))
	for _, p := range def.Parameters {
		entry := map[string]interface{}{
			"type": p.Type.String(),
		}
		if p.Default != nil {
			entry["defaultValue"] = p.Default
		}
		if len(p.Allowed) > 0 {
			entry["allowedValues"] = p.Allowed
		}
		if p.MinLength > 0 {
			entry["minLength"] = p.MinLength
		}
		if p.MaxLength > 0 {
			entry["maxLength"] = p.MaxLength
		}
		if p.Description != "" {
			entry["metadata"] = map[string]interface{}{"description": p.Description}
		}
		parameters[p.Name] = entry
	}

	resources := make([]interface{}, 0, len(def.Resources))
	for _, r := range def.Resources {
		entry := map[string]interface{}{
			"type":       r.Type,
			"apiVersion": r.APIVersion,
			"name":       r.Name,
		}
		location := r.Location
		if location == "" {
			location = "[resourceGroup().location]"
		}
		entry["location"] = location
		if r.Kind != "" {
			entry["kind"] = r.Kind
		}
		if len(r.SKU) > 0 {
			entry["sku"] = r.SKU
		}
		if len(r.Properties) > 0 {
			entry["properties"] = r.Properties
		}
		if len(r.DependsOn) > 0 {
			entry["dependsOn"] = r.DependsOn
		}
		resources = append(resources, entry)
	}

	outputs := make(map[string]interface{}, len(def.Outputs))
	for _, o := range def.Outputs {
		outputs[o.Name] = map[string]interface{}{
			"type":  o.Type,
			"value": o.Value,
		}
	}

	doc := map[string]interface{}{
		"$schema":        armSchema,
		"contentVersion": contentVersion,
		"parameters":     parameters,
		"resources":      resources,
	}
	if len(outputs) > 0 {
		doc["outputs"] = outputs
	}
	return doc
}

// createUIDefinition builds the portal UI document. Parameters flagged for
// the basics blade land there; everything else goes to a configuration step.
func (g *Generator) createUIDefinition(def *Definition) map[string]interface{} {
	var basics []interface{}
	var stepElements []interface{}
	outputs := make(map[string]interface{}, len(def.Parameters))

	for _, p := range def.Parameters {
		element := map[string]interface{}{
			"name":  p.Name,
			"type":  uiElementType(p),
			"label": p.Label,
		}
		if p.Default != nil {
			element["defaultValue"] = p.Default
		}
		if p.Description != "" {
			element["toolTip"] = p.Description
		}

		if p.PlaceInBasic {
			basics = append(basics, element)
			outputs[p.Name] = fmt.Sprintf("[basics('%s')]", p.Name)
		} else {
			stepElements = append(stepElements, element)
			outputs[p.Name] = fmt.Sprintf("[steps('configuration').%s]", p.Name)
		}
	}

	var steps []interface{}
	if len(stepElements) > 0 {
		steps = append(steps, map[string]interface{}{
			"name":     "configuration",
			"label":    "Configuration",
			"elements": stepElements,
		})
	}
	if basics == nil {
		basics = []interface{}{}
	}

	return map[string]interface{}{
		"$schema": uiSchema,
		"handler": "Microsoft.Azure.CreateUIDef",
		"version": "0.1.2-preview",
		"parameters": map[string]interface{}{
			"basics":  basics,
			"steps":   steps,
			"outputs": outputs,
		},
	}
}

// viewDefinition builds the managed application overview document
func (g *Generator) viewDefinition(def *Definition) map[string]interface{} {
	description := def.Description
	if description == "" {
		description = def.DisplayName
	}
	return map[string]interface{}{
		"$schema":        viewSchema,
		"contentVersion": contentVersion,
		"views": []interface{}{
			map[string]interface{}{
				"kind": "Overview",
				"properties": map[string]interface{}{
					"header":      def.DisplayName,
					"description": description,
				},
			},
		},
	}
}

func uiElementType(p Parameter) string {
	switch p.Type {
	case TypeSecureString:
		return "Microsoft.Common.PasswordBox"
	case TypeBool:
		return "Microsoft.Common.OptionsGroup"
	default:
		return "Microsoft.Common.TextBox"
	}
}
