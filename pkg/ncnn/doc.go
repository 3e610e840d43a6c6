// Package ncnn runs on-device classifiers with the ncnn inference
// framework.
//
// The native binding is compiled only with the ncnn build tag and links
// libncnn statically. Without the tag, [Runtime.Load] fails with
// [ErrUnavailable].
//
// A model is a .param graph plus a .bin weight blob, named by the
// descriptor's graph and weights fields. Leading unit dimensions of the
// input shape are dropped and the rest map onto ncnn's (c, h, w) layout:
// [w], [h, w] and [c, h, w].
package ncnn
