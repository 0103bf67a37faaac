// Package plan decides what a conversion will do before anything runs.
//
// Build folds the sniffed source type, the destination extension, the
// requested options, and (for audio/video) the probed stream layout into an
// immutable Plan: one Strategy, one Backend, and fully resolved parameters.
// The executor and the preview renderer both read the same Plan, so a
// preview always matches what execution would do.
//
// Strategy selection is first match wins:
//
//	same canonical type                    -> Rename
//	audio/video to audio/video             -> Remux or Transcode
//	office document to PDF                 -> Convert (document backend)
//	image or PDF to image, image to PDF    -> Convert (image backend)
//	anything else                          -> UnsupportedConversion
package plan
