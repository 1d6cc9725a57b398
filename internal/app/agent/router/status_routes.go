package router

import "github.com/gin-gonic/gin"

// registerStatusRoutes 注册状态查询路由，均为只读
func (r *Router) registerStatusRoutes(group *gin.RouterGroup) {
	group.GET("/status", r.statusHandler.GetStatus)
	group.GET("/snapshot", r.statusHandler.GetSnapshot)
	group.GET("/commands", r.statusHandler.GetCommands)
}
