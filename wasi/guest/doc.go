// Package guest connects a WebAssembly guest built for wasip1 to a D1
// binding served by its host. The host must provide the env.d1_host_handler
// import, as wasi/host does.
//
//	if err := guest.Init("DB"); err != nil {
//		panic(err)
//	}
//	db := sqlx.MustOpen("d1", "DB")
package guest
