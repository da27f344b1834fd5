//go:build !ratetable_bigendian

package ratetable

const declaredBigEndian = 0
