// Package amcodec decodes compressed video on Amlogic SoCs through the
// vendor amcodec hardware decoder, backed by a native wrapper
// (libmedia_amcodec) loaded with purego.
//
// Key pieces include:
//   - Decoder: the codec adapter that validates capabilities, converts
//     bitstreams, gates on keyframes and follows in-band sequence headers
//   - PictureHandle: a refcounted ticket for a picture that lives in the
//     hardware video layer, safe to hold past decoder teardown
//   - BitstreamConverter and KeyframeParser for avcC/hvcC streams
//   - VideoDecodePipeline and RTPPacketSource for driving a decoder
//   - VideoSync for clocking playback off the vsync interrupt
//
// # Architecture
//
//	Decode: PacketSource -> Decoder -> Session (hardware)
//	Render: Decoder.GetPicture -> PictureHandle -> Renderer -> Release
//
// Pictures never leave the video layer. A renderer receives a DecodedPicture
// whose Handle names the hardware buffer; it must Release the handle exactly
// once. After Decoder.Close every outstanding handle reports a nil Session.
//
// # Native Library
//
// Set MEDIA_AMCODEC_LIB_PATH to the library file or MEDIA_SDK_LIB_PATH to
// its directory. Without the library, Open fails with an error wrapping
// ErrCapability and callers fall back to software decode.
//
// # Configuration
//
// LoadSettings reads an optional config file and AMCODEC_* environment
// variables (after loading .env):
//
//	AMCODEC_USE_AMCODEC=false      disable hardware decode
//	AMCODEC_MIN_WIDTH_H264=720     software-decode H.264 at or below 720 wide
//	AMCODEC_LIBRARY_PATH=...       explicit libmedia_amcodec path
package amcodec
