package config

const moduleModulePath = "cue.mod/module.cue"
const schemaOverlayPath = "cue.mod/pkg/superbol.dev/superbol/schema/schema.cue"

// SchemaImportPath is the CUE import path under which configurations can
// reference #Config directly.
const SchemaImportPath = "superbol.dev/superbol/schema"

const moduleModuleContent = `module: "superbol.dev/superbol"
language: {
    version: "v0.8.0"
}
`

// schemaSource constrains CUE configurations before decoding.
const schemaSource = `package schema

#Config: {
    name?:        string
    description?: string
    logging?: {
        level?:  "trace" | "debug" | "info" | "warn" | "error"
        format?: "json" | "text"
        loki?: {
            enabled?: bool
            url?:     string
            labels?: [string]: string
        }
    }
    telemetry?: {
        enabled?:  bool
        provider?: string
    }
    workers?: int & >=0
    photometry?: {
        bin?:         bool
        bin_width?:   number & >=0
        max_gap?:     number & >=0
        extrapolate?: bool
    }
    extinction?: {
        enabled?: bool
        av?:      number & >=0
        coefficients?: [string]: number
    }
    strategy: {
        name:               string
        min_points?:        int & >=0
        max_sed_gap?:       number & >=0
        min_wavelength?:    number & >=0
        fail_on_fit_error?: bool
        seed_temperature?:  number & >0
        max_iterations?:    int & >0
        uv_band?:           string
        exclude_bands?: [...string]
    }
    bc?: {
        method?:    string
        reference?: string
    }
    distance: {
        mpc:          number & >0
        uncertainty?: number & >=0
    }
    explosion?: {
        time:         number
        uncertainty?: number & >=0
    }
    tables?: {
        bands?: string
        bc?: [...string]
    }
    output?: {
        decimals?: int & >=0
    }
}
`

func init() {
	RegisterDefaultOverlay(func() error {
		if err := RegisterOverlayString(moduleModulePath, moduleModuleContent); err != nil {
			return err
		}
		return RegisterOverlayString(schemaOverlayPath, schemaSource)
	})
}
