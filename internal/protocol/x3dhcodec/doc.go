// Package x3dhcodec encodes and decodes the binary wire messages exchanged
// with the key-distribution relay.
//
// # Wire format
//
// Every message starts with a 3-byte header: version(1) || message_type(1) ||
// curve_id(1). Version is fixed at 0x01. The body layout is message-type
// specific (spec.md §4.C):
//
//	registerUser  0x01  IK_public
//	deleteUser    0x02  empty
//	postSPK       0x03  SPK_public || SPK_signature || SPK_id(4, BE)
//	postOPKs      0x04  count(2, BE) || (OPK_public || OPK_id(4, BE)) × count
//	getPeerBundle 0x05  count(2, BE) || (device_id_len(2, BE) || device_id) × count
//	peerBundle    0x06  count(2, BE) || (device_id_len(2, BE) || device_id ||
//	                     has_opk(1) || IK || SPK || SPK_id(4) || SPK_sig ||
//	                     (OPK || OPK_id(4))?) × count
//	errorMsg      0xff  code(1) || optional message
//
// Field widths for IK, SPK, SPK_sig, OPK depend on the curve id carried in
// the header, via cryptosuite.ForCurve.
package x3dhcodec
