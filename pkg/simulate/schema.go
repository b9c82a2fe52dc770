package simulate

// Schema is the JSON schema of a simulation document. Missing fields take
// their DefaultParams values. The per-field bounds are not the whole story:
// Params.Validate also caps channels*z*y*x at MaxSamples.
const Schema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "Simulation",
  "description": "Synthetic microscopy volume; channels*z*y*x must not exceed 134217728 samples",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "channels": {
      "title": "Channels",
      "description": "Number of fluorophore channels",
      "type": "integer",
      "minimum": 1,
      "maximum": 16,
      "default": 2
    },
    "z": {
      "title": "Z planes",
      "type": "integer",
      "minimum": 1,
      "maximum": 512,
      "default": 16
    },
    "y": {
      "title": "Height",
      "type": "integer",
      "minimum": 1,
      "maximum": 2048,
      "default": 64
    },
    "x": {
      "title": "Width",
      "type": "integer",
      "minimum": 1,
      "maximum": 2048,
      "default": 64
    },
    "beads": {
      "title": "Beads",
      "description": "Point emitters per bead channel",
      "type": "integer",
      "minimum": 0,
      "maximum": 100000,
      "default": 20
    },
    "psf_sigma": {
      "title": "PSF sigma",
      "description": "Gaussian PSF width in pixels, 0 disables blurring",
      "type": "number",
      "minimum": 0,
      "default": 1.5
    },
    "noise": {
      "title": "Photon scale",
      "description": "Shot noise photon scale, 0 disables noise",
      "type": "number",
      "minimum": 0,
      "default": 0
    },
    "seed": {
      "title": "Seed",
      "type": "integer",
      "minimum": -9007199254740991,
      "maximum": 9007199254740991,
      "default": 1
    }
  }
}`
