// Package memory keeps the process inside its container memory limit.
//
// Cached payloads are served from process memory through object handles, so
// the heap grows with the number of live handles. Two pieces keep that in
// check:
//
//   - [ConfigureFromEnv] derives GOMEMLIMIT from the container limit so the
//     garbage collector works harder before the kernel OOM-kills the pod.
//   - [Monitor] samples heap usage and, above the high water mark, calls a
//     [ReliefFunc] that revokes the oldest handles.
//
// # Environment Variables
//
//   - GOMEMLIMIT: standard Go variable. Takes precedence when set.
//   - MEMORY_LIMIT: container limit in bytes, usually from the Kubernetes
//     Downward API.
//   - MEMORY_RATIO: share of MEMORY_LIMIT given to the heap, in (0, 1].
//     Defaults to 0.80.
//
// # Kubernetes
//
//	env:
//	- name: MEMORY_LIMIT
//	  valueFrom:
//	    resourceFieldRef:
//	      resource: limits.memory
package memory
