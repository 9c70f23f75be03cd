package godray

import _ "embed"

//go:embed shaders/sundisk.wgsl
var sundiskSource string

//go:embed shaders/radial_blur.wgsl
var radialBlurSource string

//go:embed shaders/gaussian_blur.wgsl
var gaussianBlurSource string

//go:embed shaders/overlay.wgsl
var overlaySource string

//go:embed shaders/blit.wgsl
var blitSource string
