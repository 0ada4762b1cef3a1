package exportanalysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"exportready-backend/internal/compliance"
	"exportready-backend/internal/countries"
	"exportready-backend/internal/shared/util"
)

const regulationSystemPromptEN = `You are an international trade compliance advisor for Indonesian small-business exporters.
Give SPECIFIC, ACTIONABLE regulation recommendations for exporting the given product to the target country.
- Cite real regulation numbers where they exist.
- Give cost estimates in IDR.
- Give concrete steps, processing times and the responsible authority.
- Reply with valid JSON that matches the requested structure and nothing else.`

const regulationSystemPromptID = `Kamu adalah penasihat kepatuhan perdagangan internasional untuk eksportir UMKM Indonesia.
Berikan rekomendasi regulasi yang SPESIFIK dan DAPAT DITINDAKLANJUTI untuk ekspor produk ke negara tujuan.
- Sebutkan nomor regulasi yang nyata bila ada.
- Berikan estimasi biaya dalam IDR.
- Berikan langkah konkret, waktu proses, dan lembaga yang berwenang.
- Balas HANYA dengan JSON valid yang sesuai dengan struktur yang diminta.`

// regulationDocumentShape is the JSON layout requested from the analyzer.
// The fallback document follows the same layout.
const regulationDocumentShape = `{
  "regulation_recommendations": {
    "product_classification": {"detected_category": "", "hs_code_suggestion": "", "hs_description": "", "regulatory_category": ""},
    "required_certifications": [{"certification_name": "", "regulatory_body": "", "why_applicable": "", "estimated_cost_idr": "", "processing_time": "", "how_to_obtain": "", "priority": "critical|high|medium|low", "applicable": true, "not_applicable_reason": ""}],
    "material_specific_regulations": [{"material": "", "percentage": "", "applicable_regulations": [{"regulation_name": "", "regulation_number": "", "requirement": "", "compliance_action": "", "documentation_needed": "", "risk_if_non_compliant": ""}]}],
    "labeling_requirements": [{"requirement_name": "", "regulation_reference": "", "specification": "", "language_requirement": "", "placement": "", "mandatory": true, "example": ""}],
    "packaging_requirements": [{"requirement_name": "", "current_packaging": "", "compliance_status": "compliant|non_compliant|needs_verification", "regulation_reference": "", "action_needed": "", "notes": ""}],
    "import_documentation": [{"document_name": "", "required": true, "issuing_authority": "", "purpose": "", "must_include": [""], "estimated_cost_idr": "", "processing_time": ""}],
    "tariff_and_duties": {"hs_code": "", "mfn_duty_rate": "", "preferential_schemes": [{"scheme_name": "", "preferential_rate": "", "conditions": "", "certificate_needed": ""}]},
    "prohibited_or_restricted": {"is_prohibited": false, "is_restricted": false, "restrictions": [""], "special_permits_needed": [""]},
    "action_priority_list": [{"priority_order": 1, "action": "", "category": "", "estimated_time": "", "estimated_cost_idr": "", "blocking_export": true}],
    "country_specific_notes": [""]
  }
}`

type promptLabels struct {
	intro, product, name, category, material, packaging, hsCode, description, weight, net, gross string
	country, countryLabel, region, issues, task, onlyJSON, unspecified, undetermined            string
}

var labelsByLanguage = map[string]promptLabels{
	"en": {
		intro:        "Analyze the following product and give SPECIFIC regulation recommendations for export to the target country.",
		product:      "PRODUCT DATA",
		name:         "Product Name",
		category:     "Category",
		material:     "Material Composition",
		packaging:    "Packaging Type",
		hsCode:       "HS Code",
		description:  "Description",
		weight:       "Weight",
		net:          "net",
		gross:        "gross",
		country:      "TARGET COUNTRY",
		countryLabel: "Country",
		region:       "Region",
		issues:       "COMPLIANCE ISSUES DETECTED",
		task:         "Reply in this JSON structure:",
		onlyJSON:     "Reply with the JSON only, no other text.",
		unspecified:  "Not specified",
		undetermined: "Not yet determined",
	},
	"id": {
		intro:        "Analisis produk berikut dan berikan rekomendasi regulasi SPESIFIK untuk ekspor ke negara tujuan.",
		product:      "DATA PRODUK",
		name:         "Nama Produk",
		category:     "Kategori",
		material:     "Komposisi Material",
		packaging:    "Jenis Kemasan",
		hsCode:       "Kode HS",
		description:  "Deskripsi",
		weight:       "Berat",
		net:          "netto",
		gross:        "bruto",
		country:      "NEGARA TUJUAN",
		countryLabel: "Negara",
		region:       "Wilayah",
		issues:       "MASALAH KEPATUHAN YANG TERDETEKSI",
		task:         "Balas dengan struktur JSON berikut:",
		onlyJSON:     "Berikan HANYA output JSON, tanpa teks tambahan.",
		unspecified:  "Tidak ditentukan",
		undetermined: "Belum ditentukan",
	},
}

func regulationSystemPrompt(language string) string {
	if language == "en" {
		return regulationSystemPromptEN
	}
	return regulationSystemPromptID
}

// regulationPrompt describes the snapshotted product, never the live one.
func regulationPrompt(s ProductSnapshot, country countries.Country, issues []compliance.Issue, language string) string {
	l, ok := labelsByLanguage[language]
	if !ok {
		l = labelsByLanguage["id"]
	}
	issuesJSON, err := json.MarshalIndent(nonNilIssues(issues), "", "  ")
	if err != nil {
		issuesJSON = []byte("[]")
	}

	var b strings.Builder
	b.WriteString(l.intro + "\n\n")
	fmt.Fprintf(&b, "## %s\n", l.product)
	fmt.Fprintf(&b, "- %s: %s\n", l.name, s.NameLocal)
	fmt.Fprintf(&b, "- %s: %d\n", l.category, s.CategoryID)
	fmt.Fprintf(&b, "- %s: %s\n", l.material, orDefault(s.MaterialComposition, l.unspecified))
	fmt.Fprintf(&b, "- %s: %s\n", l.packaging, orDefault(s.PackagingType, l.unspecified))
	fmt.Fprintf(&b, "- %s: %s\n", l.hsCode, orDefault(hsCode(s), l.undetermined))
	fmt.Fprintf(&b, "- %s: %s...\n", l.description, util.TruncateRunes(s.DescriptionLocal, 200))
	fmt.Fprintf(&b, "- %s: %s kg (%s), %s kg (%s)\n\n", l.weight, formatWeight(s.WeightNet), l.net, formatWeight(s.WeightGross), l.gross)
	fmt.Fprintf(&b, "## %s\n", l.country)
	fmt.Fprintf(&b, "- %s: %s (%s)\n", l.countryLabel, country.Name, country.Code)
	fmt.Fprintf(&b, "- %s: %s\n\n", l.region, country.Region)
	fmt.Fprintf(&b, "## %s\n%s\n\n", l.issues, issuesJSON)
	b.WriteString(l.task + "\n")
	b.WriteString(regulationDocumentShape + "\n\n")
	b.WriteString(l.onlyJSON)
	return b.String()
}

func nonNilIssues(issues []compliance.Issue) []compliance.Issue {
	if issues == nil {
		return []compliance.Issue{}
	}
	return issues
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func formatWeight(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%g", *v)
}

// fallbackRegulationDocument is the deterministic document used when the
// analyzer cannot produce one.
func fallbackRegulationDocument(s ProductSnapshot, country countries.Country, language string) json.RawMessage {
	hs := hsCode(s)
	if hs == "" {
		hs = "00000000"
	}
	name := country.Name
	if name == "" {
		name = country.Code
	}

	var doc map[string]any
	if language == "en" {
		doc = fallbackEN(s.CategoryID, hs, name)
	} else {
		doc = fallbackID(s.CategoryID, hs, name)
	}
	raw, err := json.Marshal(map[string]any{"regulation_recommendations": doc})
	if err != nil {
		return json.RawMessage(`{"regulation_recommendations":{}}`)
	}
	return raw
}

func fallbackEN(categoryID int, hs, country string) map[string]any {
	return map[string]any{
		"product_classification": map[string]any{
			"detected_category":   fmt.Sprintf("Category %d", categoryID),
			"hs_code_suggestion":  hs,
			"hs_description":      "HS Code requires verification",
			"regulatory_category": "General Consumer Product",
		},
		"required_certifications": []any{map[string]any{
			"certification_name":    "Export Certification for " + country,
			"regulatory_body":       country + " Customs Authority",
			"why_applicable":        "Required for product import",
			"estimated_cost_idr":    "1,000,000 - 5,000,000",
			"processing_time":       "1-2 months",
			"how_to_obtain":         "Contact local trade authority for specific requirements",
			"priority":              "high",
			"applicable":            true,
			"not_applicable_reason": "",
		}},
		"material_specific_regulations": []any{},
		"labeling_requirements": []any{map[string]any{
			"requirement_name":     "Product Labeling",
			"regulation_reference": "Standard import requirements",
			"specification":        "Product name, origin, materials, and manufacturer information",
			"language_requirement": "English or local language",
			"placement":            "Visible on product packaging",
			"mandatory":            true,
			"example":              "Product: [Name] | Origin: Indonesia | Materials: [List]",
		}},
		"packaging_requirements": []any{},
		"import_documentation": []any{map[string]any{
			"document_name":      "Certificate of Origin",
			"required":           true,
			"issuing_authority":  "Kamar Dagang dan Industri (KADIN) Indonesia",
			"purpose":            "Prove product origin for tariff benefits",
			"must_include":       []string{"Product description", "HS Code", "Origin country"},
			"estimated_cost_idr": "100,000 - 500,000",
			"processing_time":    "3-5 business days",
		}},
		"tariff_and_duties": map[string]any{
			"hs_code":              hs,
			"mfn_duty_rate":        "Requires verification",
			"preferential_schemes": []any{},
		},
		"prohibited_or_restricted": notRestricted(),
		"action_priority_list": []any{
			action(1, "Verify HS Code classification", "Classification", "1 week"),
			action(2, "Research "+country+" import requirements", "Documentation", "2 weeks"),
		},
		"country_specific_notes": []string{
			"Please consult with " + country + " trade authorities for the most current regulations.",
			"Requirements may vary based on product specifics and recent policy changes.",
		},
	}
}

func fallbackID(categoryID int, hs, country string) map[string]any {
	return map[string]any{
		"product_classification": map[string]any{
			"detected_category":   fmt.Sprintf("Kategori %d", categoryID),
			"hs_code_suggestion":  hs,
			"hs_description":      "Kode HS memerlukan verifikasi",
			"regulatory_category": "Produk Konsumen Umum",
		},
		"required_certifications": []any{map[string]any{
			"certification_name":    "Sertifikasi Ekspor untuk " + country,
			"regulatory_body":       "Otoritas Bea Cukai " + country,
			"why_applicable":        "Diperlukan untuk impor produk",
			"estimated_cost_idr":    "1.000.000 - 5.000.000",
			"processing_time":       "1-2 bulan",
			"how_to_obtain":         "Hubungi otoritas perdagangan lokal untuk persyaratan spesifik",
			"priority":              "high",
			"applicable":            true,
			"not_applicable_reason": "",
		}},
		"material_specific_regulations": []any{},
		"labeling_requirements": []any{map[string]any{
			"requirement_name":     "Label Produk",
			"regulation_reference": "Persyaratan impor standar",
			"specification":        "Nama produk, asal, material, dan informasi produsen",
			"language_requirement": "Bahasa Inggris atau bahasa lokal",
			"placement":            "Terlihat pada kemasan produk",
			"mandatory":            true,
			"example":              "Produk: [Nama] | Asal: Indonesia | Material: [Daftar]",
		}},
		"packaging_requirements": []any{},
		"import_documentation": []any{map[string]any{
			"document_name":      "Surat Keterangan Asal (Certificate of Origin)",
			"required":           true,
			"issuing_authority":  "Kamar Dagang dan Industri (KADIN) Indonesia",
			"purpose":            "Membuktikan asal produk untuk manfaat tarif",
			"must_include":       []string{"Deskripsi produk", "Kode HS", "Negara asal"},
			"estimated_cost_idr": "100.000 - 500.000",
			"processing_time":    "3-5 hari kerja",
		}},
		"tariff_and_duties": map[string]any{
			"hs_code":              hs,
			"mfn_duty_rate":        "Memerlukan verifikasi",
			"preferential_schemes": []any{},
		},
		"prohibited_or_restricted": notRestricted(),
		"action_priority_list": []any{
			action(1, "Verifikasi klasifikasi kode HS", "Klasifikasi", "1 minggu"),
			action(2, "Pelajari persyaratan impor "+country, "Dokumentasi", "2 minggu"),
		},
		"country_specific_notes": []string{
			"Silakan konsultasikan dengan otoritas perdagangan " + country + " untuk regulasi terbaru.",
			"Persyaratan dapat berbeda tergantung spesifikasi produk dan perubahan kebijakan terbaru.",
		},
	}
}

func notRestricted() map[string]any {
	return map[string]any{
		"is_prohibited":          false,
		"is_restricted":          false,
		"restrictions":           []string{},
		"special_permits_needed": []string{},
	}
}

func action(order int, text, category, eta string) map[string]any {
	return map[string]any{
		"priority_order":     order,
		"action":             text,
		"category":           category,
		"estimated_time":     eta,
		"estimated_cost_idr": "0",
		"blocking_export":    true,
	}
}
