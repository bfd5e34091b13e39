package dialog

import (
	"fmt"
	"strings"

	"agenda/internal/calendar"
	"agenda/internal/store"
)

const (
	msgNotUnderstood  = "No entendí, repite por favor."
	msgAborted        = "Cancelado."
	msgGoodbye        = "Hasta luego."
	msgStorageFailure = "Lo siento, no pude acceder a la agenda. Inténtalo más tarde."
	msgUnknownCommand = "No se ha entendido la orden. Si precisa ayuda diga: ayuda."

	promptDate      = "¿Para qué fecha? Dime día, mes y año con ocho dígitos."
	promptAlarmDate = "¿Qué día suena la alarma? Dime día, mes y año con ocho dígitos."
	promptTime      = "¿A qué hora? Dime cuatro dígitos, por ejemplo cero nueve tres cero."
	promptTaskText  = "¿Cuál es la tarea?"
	promptIndex     = "¿Qué número de tarea quieres eliminar?"

	clarifyDate     = "Fecha inválida. Dímela con ocho dígitos, por ejemplo dos siete uno dos dos cero dos cinco."
	clarifyTime     = "Hora inválida. Dímela con cuatro dígitos, horas de cero a veintitrés y minutos de cero a cincuenta y nueve."
	clarifyIndex    = "No entendí el número de la tarea. Dime solo el número."
	clarifyTaskText = "No escuché la tarea. Repítela por favor."
	clarifyPastDate = "No se puede ingresar una fecha anterior. Dime una fecha a partir de mañana."
	clarifyAlarmDay = "Esa fecha ya pasó. Dime otra fecha."

	msgHelp = "Puedes decir: añadir tarea, eliminar tarea, ver tareas, tareas de hoy o poner alarma. " +
		"En cualquier momento di salir para cancelar."
)

func msgQuota(quota int) string {
	return fmt.Sprintf("Ya hay %d tareas para esa fecha. Dime otra fecha.", quota)
}

func msgDuplicateAlarm(day calendar.Date, at calendar.Clock) string {
	return fmt.Sprintf("Ya hay una alarma el %s a las %s. Dime otra hora.", day.Spoken(), at)
}

func msgAlarmSet(day calendar.Date, at calendar.Clock) string {
	return fmt.Sprintf("Alarma programada para el %s a las %s.", day.Spoken(), at)
}

func msgTaskAdded(index int, date calendar.Date, text string) string {
	return fmt.Sprintf("Tarea %d agregada para el %s: %s.", index, date.Spoken(), text)
}

func msgTaskDeleted(index int, date calendar.Date) string {
	return fmt.Sprintf("Tarea con índice %d eliminada de la fecha %s.", index, date.Spoken())
}

func msgTaskNotFound(index int) string {
	return fmt.Sprintf("No se encontró una tarea con el índice %d. Dime otro número.", index)
}

func msgNoTasks(date calendar.Date) string {
	return fmt.Sprintf("No hay tareas para el %s.", date.Spoken())
}

func msgNoTasksRetry(date calendar.Date) string {
	return msgNoTasks(date) + " Dime otra fecha."
}

func msgTaskList(date calendar.Date, tasks []store.Task) string {
	parts := make([]string, len(tasks))
	for i, t := range tasks {
		parts[i] = fmt.Sprintf("%d, %s", t.Index, t.Text)
	}
	noun := "tareas"
	if len(tasks) == 1 {
		noun = "tarea"
	}
	return fmt.Sprintf("Para el %s hay %d %s: %s.", date.Spoken(), len(tasks), noun, strings.Join(parts, "; "))
}

func msgToday(tasks []string) string {
	if len(tasks) == 0 {
		return "No tienes tareas para hoy."
	}
	return "Tus tareas de hoy son: " + strings.Join(tasks, "; ") + "."
}
